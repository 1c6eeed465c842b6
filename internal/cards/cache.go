package cards

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Cache is the disk-backed, content-addressed store of transcoded card
// artifacts under <cache_dir>/cards/. Its write path is atomic
// (write-to-temp, fsync, rename) so a reader never observes a partial
// artifact, and it guarantees at-most-one build per fingerprint within a
// process via an in-memory lock keyed by the cache filename.
type Cache struct {
	dir string

	mu     sync.Mutex
	inFlight map[string]*sync.Mutex
}

// NewCache prepares the cache directory (<dir>/cards) for use.
func NewCache(dir string) (*Cache, error) {
	cardsDir := filepath.Join(dir, "cards")
	if err := os.MkdirAll(cardsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: cardsDir, inFlight: make(map[string]*sync.Mutex)}, nil
}

// HashSource streams a source file to compute its SHA-256 content hash
// without buffering it whole.
func HashSource(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Key returns the cache filename for a given source hash and transform
// spec: sha256(source) ‖ transform_spec ‖ pipeline_version.
func Key(sourceHash string, spec TransformSpec) string {
	return fmt.Sprintf("%s_%s_%s.%s", sourceHash, spec.Tag(), PipelineVersion, spec.Ext())
}

// Path returns the absolute path an artifact for the given key would live
// at.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.dir, key)
}

// lockFor returns the in-memory mutex serializing builds for one cache
// key, so concurrent workers racing on the same fingerprint block on each
// other instead of duplicating work.
func (c *Cache) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.inFlight[key]
	if !ok {
		m = &sync.Mutex{}
		c.inFlight[key] = m
	}
	return m
}

// Get returns the artifact bytes for key if present on disk, without
// validation.
func (c *Cache) Get(key string) ([]byte, bool) {
	b, err := os.ReadFile(c.Path(key))
	if err != nil {
		return nil, false
	}
	return b, true
}

// Evict removes a cache artifact, used when validation detects corruption.
func (c *Cache) Evict(key string) {
	_ = os.Remove(c.Path(key))
}

// WriteAtomic writes data to the cache under key using write-to-temp,
// fsync, rename, so a concurrent reader (in this process or another)
// never observes a partial file.
func (c *Cache) WriteAtomic(key string, data []byte) error {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()
	return c.writeAtomicLocked(key, data)
}

// writeAtomicLocked performs the write-to-temp/fsync/rename sequence for a
// key whose per-key lock the caller already holds. Split out so buildOne
// can hold that lock across the whole probe-transcode-write sequence
// instead of re-acquiring it (and deadlocking) just for the final write.
func (c *Cache) writeAtomicLocked(key string, data []byte) error {
	final := c.Path(key)
	tmp := filepath.Join(c.dir, fmt.Sprintf(".tmp-%s", randomSuffix()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync temp artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp artifact: %w", err)
	}
	return nil
}

func randomSuffix() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed suffix rather than crashing the transcode worker, at the
		// cost of temp-name collision risk under concurrent load.
		return "fallback"
	}
	return hex.EncodeToString(buf)
}

// SweepOrphans removes stray temp files (abandoned `.tmp-*` artifacts left
// behind by a process killed mid-write) and reports how many it removed.
// Every other file is left in place: it never touches a well-formed
// artifact, even one from an older pipeline version, since those simply
// become unreachable garbage rather than actively-served corrupt data.
func (c *Cache) SweepOrphans() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), ".tmp-") {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
