package cache

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Runtime is the in-process read-through cache in front of the store. Entries
// are tagged with the epoch current at write time; bumping the epoch
// invalidates everything at once, including values already handed to in-flight
// readers that re-check before use.
type Runtime struct {
	mu      sync.RWMutex
	entries map[string]entry
	epoch   atomic.Int64
}

type entry struct {
	value any
	epoch int64
}

func NewRuntime() *Runtime {
	return &Runtime{entries: make(map[string]entry)}
}

// Epoch returns the current cache epoch.
func (c *Runtime) Epoch() int64 {
	return c.epoch.Load()
}

func (c *Runtime) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.epoch != c.epoch.Load() {
		return nil, false
	}
	return e.value, true
}

func (c *Runtime) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, epoch: c.epoch.Load()}
	c.mu.Unlock()
}

// ResetAll drops every entry and bumps the epoch. reason is logged so flush
// postmortems can tell an operator reset from an automatic one.
func (c *Runtime) ResetAll(reason string) {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	newEpoch := c.epoch.Add(1)
	c.mu.Unlock()

	zap.S().Named("cache").Infow("runtime cache reset", "reason", reason, "epoch", newEpoch)
}
