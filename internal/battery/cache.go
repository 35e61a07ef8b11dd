package battery

import (
	"sync"

	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/protocol"
	"go.uber.org/zap"
)

// Cache merges live battery reports with the last known readings.
//
// A live non-zero level replaces the cached reading and is persisted. A live
// zero falls back to the cached reading, or to not-present when nothing is
// cached. Persistence failures are logged and never block a merge.
type Cache struct {
	mu     sync.Mutex
	store  Store
	cached Status
}

// NewCache creates a cache persisting through store. Call Load to read the
// previous session's readings.
func NewCache(store Store) *Cache {
	if store == nil {
		store = NewMemoryStore(Status{})
	}
	return &Cache{store: store}
}

// Load reads the persisted readings into memory
func (c *Cache) Load() error {
	s, err := c.store.Load()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cached = s
	c.mu.Unlock()
	return nil
}

// Cached returns the current cached readings
func (c *Cache) Cached() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

// Merge combines a live status with the cache and returns the merged view.
// Components in live with Present false (level 0) are treated as not reporting.
func (c *Cache) Merge(live Status) Status {
	c.mu.Lock()

	var merged Status
	changed := false
	for _, comp := range Components {
		l := live.Get(comp)
		if l.Present && l.Level > 0 {
			if l != c.cached.Get(comp) {
				c.cached.set(comp, l)
				changed = true
			}
			merged.set(comp, l)
			continue
		}
		merged.set(comp, c.cached.Get(comp))
	}

	snapshot := c.cached
	c.mu.Unlock()

	if changed {
		if err := c.store.Save(snapshot); err != nil {
			logging.Warn("Failed to persist battery cache", zap.Error(err))
		}
	}
	return merged
}

// Clear forgets every cached reading and persists the empty cache
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.cached = Status{}
	c.mu.Unlock()
	return c.store.Save(Status{})
}

// FromReport converts a decoded battery report into a live status
func FromReport(r *protocol.BatteryReport) Status {
	return Status{
		Left:  fromLevel(r.Left),
		Right: fromLevel(r.Right),
		Case:  fromLevel(r.Case),
	}
}

func fromLevel(l protocol.BatteryLevel) Reading {
	if !l.Active() {
		return Reading{}
	}
	return Reading{Level: l.Level, Present: true}
}
