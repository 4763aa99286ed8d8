// Package cache implements the persistent nickname cache for QRZ lookups.
// It stores callsign -> nickname mappings with a TTL in a single JSON file.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is how long a cached lookup result stays valid
const DefaultTTL = 30 * 24 * time.Hour

type entry struct {
	Nickname *string   `json:"nickname"`
	CachedAt time.Time `json:"cached_at"`
}

type fileData struct {
	Entries map[string]entry `json:"entries"`
}

// Nickname is a file-backed TTL cache keyed by uppercased callsign.
// A cached nil nickname is a confirmed "no nickname" result and counts
// as a hit, so unknown callsigns are not looked up repeatedly.
type Nickname struct {
	mu     sync.RWMutex
	path   string
	data   fileData
	ttl    time.Duration
	dirty  bool
	logger zerolog.Logger
	now    func() time.Time
}

// Load reads the cache file at path. A missing or empty file yields an
// empty cache; a corrupt file is logged and discarded. Entries older
// than the TTL are pruned. Load never fails.
func Load(path string, logger zerolog.Logger) *Nickname {
	c := &Nickname{
		path:   path,
		data:   fileData{Entries: make(map[string]entry)},
		ttl:    DefaultTTL,
		logger: logger,
		now:    time.Now,
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to read nickname cache, starting fresh")
		}
		return c
	}
	if strings.TrimSpace(string(content)) == "" {
		return c
	}

	var data fileData
	if err := json.Unmarshal(content, &data); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to parse nickname cache, starting fresh")
		return c
	}
	if data.Entries == nil {
		data.Entries = make(map[string]entry)
	}

	// Prune expired entries on load
	before := len(data.Entries)
	cutoff := c.now().Add(-c.ttl)
	for callsign, e := range data.Entries {
		if e.CachedAt.Before(cutoff) {
			delete(data.Entries, callsign)
		}
	}
	c.data = data

	logger.Info().
		Int("entries", len(data.Entries)).
		Int("pruned", before-len(data.Entries)).
		Msg("Loaded nickname cache")

	return c
}

// Get returns the cached nickname for a callsign. ok is false on a miss
// or when the entry has expired; a nil nickname with ok true means the
// callsign is confirmed to have no nickname.
func (c *Nickname) Get(callsign string) (nickname *string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, found := c.data.Entries[strings.ToUpper(callsign)]
	if !found || c.now().Sub(e.CachedAt) > c.ttl {
		return nil, false
	}
	return e.Nickname, true
}

// Insert upserts a lookup result and marks the cache dirty
func (c *Nickname) Insert(callsign string, nickname *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Entries[strings.ToUpper(callsign)] = entry{
		Nickname: nickname,
		CachedAt: c.now(),
	}
	c.dirty = true
}

// Save writes the cache to disk if dirty. The file is written to a
// temporary sibling and renamed so readers never see a partial write.
func (c *Nickname) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(&c.data, "", "  ")
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return err
	}

	c.dirty = false
	c.logger.Debug().Int("entries", len(c.data.Entries)).Msg("Saved nickname cache")
	return nil
}

// Len returns the number of entries in the cache
func (c *Nickname) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Entries)
}
