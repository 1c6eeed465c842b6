// Package directory is the process-wide room registry (component E): it
// mints room codes, looks rooms up by code, and garbage-collects rooms
// nobody has touched in a long while.
package directory

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/wyattkrebs/talespin-server/internal/logger"
	"github.com/wyattkrebs/talespin-server/internal/room"
)

const (
	codeAlphabet   = "abcdefghijklmnopqrstuvwxyz"
	codeLength     = 4
	maxCodeRetries = 50
)

type entry struct {
	room         *room.Room
	lastActivity time.Time
}

// Directory holds every live room, keyed by its 4-character code.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*entry

	cards room.CardSource
	sink  room.EventSink
	log   logger.Logger

	now         func() time.Time
	idleTimeout time.Duration
}

// New constructs an empty directory. idleTimeout is how long a room may
// go without a touch before MaintenanceTick reaps it.
func New(cards room.CardSource, sink room.EventSink, log logger.Logger, idleTimeout time.Duration) *Directory {
	return &Directory{
		rooms:       make(map[string]*entry),
		cards:       cards,
		sink:        sink,
		log:         log,
		now:         time.Now,
		idleTimeout: idleTimeout,
	}
}

// Create mints a fresh room code and registers a new room under it.
func (d *Directory) Create(winCondition room.WinCondition, creatorName, creatorToken, password string, defaultWinPoints int) (string, *room.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	code, err := d.freeCodeLocked()
	if err != nil {
		return "", nil, err
	}

	r := room.New(code, creatorName, creatorToken, winCondition, password, defaultWinPoints, d.cards, d.sink)
	d.rooms[code] = &entry{room: r, lastActivity: d.now()}
	d.log.Info("room created", "code", code, "creator", creatorName, "win_condition", winCondition)
	return code, r, nil
}

func (d *Directory) freeCodeLocked() (string, error) {
	for i := 0; i < maxCodeRetries; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, taken := d.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("directory: exhausted %d attempts generating a free room code", maxCodeRetries)
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Exists reports whether a room with the given code is currently registered.
func (d *Directory) Exists(code string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[code]
	return ok
}

// Get returns the room registered under code, if any.
func (d *Directory) Get(code string) (*room.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.rooms[code]
	if !ok {
		return nil, false
	}
	return e.room, true
}

// Touch records activity on a room, resetting its idle-GC clock. The hub
// calls this on every inbound client message.
func (d *Directory) Touch(code string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.rooms[code]; ok {
		e.lastActivity = d.now()
	}
}

// MaintenanceTick runs the per-room moderator-continuity check on every
// live room, then reaps rooms idle past idleTimeout. cmd/talespin calls it
// every 30 seconds.
func (d *Directory) MaintenanceTick() {
	now := d.now()

	d.mu.RLock()
	rooms := make([]*room.Room, 0, len(d.rooms))
	for _, e := range d.rooms {
		rooms = append(rooms, e.room)
	}
	d.mu.RUnlock()

	for _, r := range rooms {
		r.MaintenanceTick(now)
	}

	d.reap(now)
}

func (d *Directory) reap(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for code, e := range d.rooms {
		if now.Sub(e.lastActivity) < d.idleTimeout {
			continue
		}
		delete(d.rooms, code)
		d.log.Info("room reaped for inactivity", "code", code, "idle_for", now.Sub(e.lastActivity))
	}
}

// Len reports how many rooms are currently registered, mainly for the
// /stats endpoint.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// RoomSummary is one row of Snapshot, the per-room detail the /stats
// endpoint reports (supplement C.2): the original's
// (num_active_connections, last_access_unix), generalized to also carry
// stage and active player count.
type RoomSummary struct {
	Code           string
	Stage          string
	ActivePlayers  int
	Connections    int
	LastAccessUnix int64
}

// Snapshot returns one RoomSummary per currently registered room. Each
// room's own stats are read through its lock via Room.Stats, so this never
// observes a torn mid-transition state.
func (d *Directory) Snapshot() []RoomSummary {
	d.mu.RLock()
	type pair struct {
		code string
		e    *entry
	}
	pairs := make([]pair, 0, len(d.rooms))
	for code, e := range d.rooms {
		pairs = append(pairs, pair{code, e})
	}
	d.mu.RUnlock()

	out := make([]RoomSummary, 0, len(pairs))
	for _, p := range pairs {
		stats := p.e.room.Stats()
		out = append(out, RoomSummary{
			Code:           p.code,
			Stage:          stats.Stage,
			ActivePlayers:  stats.ActivePlayerCount,
			Connections:    stats.ConnectedCount,
			LastAccessUnix: p.e.lastActivity.Unix(),
		})
	}
	return out
}
