package marketdata

import (
	"sort"
	"sync"

	"riskexecutor/src/model"
)

// Observer receives every snapshot written to the cache.
// Observers run on the feed's goroutine and must return quickly.
type Observer interface {
	OnSnapshot(snapshot model.MarketSnapshot)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(snapshot model.MarketSnapshot)

func (f ObserverFunc) OnSnapshot(snapshot model.MarketSnapshot) { f(snapshot) }

// Cache holds the latest snapshot per symbol.
type Cache struct {
	mu        sync.RWMutex
	snapshots map[string]model.MarketSnapshot
	observers []Observer
}

func NewCache() *Cache {
	return &Cache{snapshots: make(map[string]model.MarketSnapshot)}
}

// Register appends an observer; observers are notified in registration order.
func (c *Cache) Register(o Observer) {
	if o == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// Update overwrites the entry for snapshot.Symbol and notifies observers synchronously.
// The lock is released before observers run so they may read the cache.
func (c *Cache) Update(snapshot model.MarketSnapshot) {
	c.mu.Lock()
	c.snapshots[snapshot.Symbol] = snapshot
	observers := c.observers
	c.mu.Unlock()

	for _, o := range observers {
		o.OnSnapshot(snapshot)
	}
}

// Get returns the latest snapshot for symbol.
func (c *Cache) Get(symbol string) (model.MarketSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[symbol]
	return s, ok
}

// Symbols returns a sorted copy of the current key set.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.snapshots))
	for symbol := range c.snapshots {
		out = append(out, symbol)
	}
	c.mu.RUnlock()

	sort.Strings(out)
	return out
}
