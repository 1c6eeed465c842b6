package cards

import (
	"fmt"
	"os"
)

// Registrar is the read-only surface the room engine and HTTP front draw
// cards from. Registry is its only implementation; the interface exists so
// tests can substitute an in-memory fake without touching disk.
type Registrar interface {
	Get(id string) (Card, bool)
	Bytes(id string) ([]byte, string, error)
	IDs() []string
	Len() int
}

// Registry maps stable card IDs to their transcoded artifacts. It is built
// once by Boot and never mutated afterward, so it needs no internal
// locking to be shared across every room goroutine.
type Registry struct {
	cards []Card
	byID  map[string]int
}

func newRegistry() *Registry {
	return &Registry{byID: make(map[string]int)}
}

// add assigns the next stable ID (an ordinal, since sources are added in
// deterministic path-sorted order by the caller) to a card.
func (r *Registry) add(c Card) {
	c.ID = fmt.Sprintf("c%d", len(r.cards))
	r.byID[c.ID] = len(r.cards)
	r.cards = append(r.cards, c)
}

func (r *Registry) Get(id string) (Card, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Card{}, false
	}
	return r.cards[i], true
}

// Bytes reads a card's artifact bytes from disk on demand; the registry
// itself holds only paths, not file contents, to keep boot memory bounded.
func (r *Registry) Bytes(id string) ([]byte, string, error) {
	c, ok := r.Get(id)
	if !ok {
		return nil, "", fmt.Errorf("unknown card id %q", id)
	}
	data, err := os.ReadFile(c.ArtifactPath)
	if err != nil {
		return nil, "", fmt.Errorf("read artifact for %q: %w", id, err)
	}
	return data, c.MIME, nil
}

// IDs returns every card ID in stable registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.cards))
	for i, c := range r.cards {
		ids[i] = c.ID
	}
	return ids
}

func (r *Registry) Len() int {
	return len(r.cards)
}

var _ Registrar = (*Registry)(nil)
