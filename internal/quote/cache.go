// Package quote provides the quote cache: the latest tick per
// (instrument, data kind), with a subscription set that fans qualifying
// ticks out to a single consumer callback.
package quote

import (
	"sync"

	"vulcan/internal/domain"
)

// TickCallback receives every tick for instruments in the enabled set. It is
// invoked synchronously from UpdateQuote, on the producer's goroutine, with
// the cache's table lock held. Implementations must not call back into
// UpdateQuote or LastQuote.
type TickCallback func(instrument string, tick domain.Tick)

type tableKey struct {
	instrument string
	kind       domain.DataKind
}

// Cache decouples market-data ingestion from matching-engine evaluation.
// Entries are last-write-wins per (instrument, kind); no history is kept,
// since only the latest bid/offer/price matters for crossing decisions.
//
// Two locks keep producers and the matching engine from blocking each other:
// mu guards the snapshot table and is held across the subscriber callback,
// while the enabled set has its own lock so the engine can disable a ticker
// from inside that callback without deadlocking.
type Cache struct {
	mu    sync.Mutex
	table map[tableKey]domain.Tick

	subMu    sync.Mutex
	enabled  map[string]bool
	callback TickCallback
}

// NewCache creates an empty quote cache.
func NewCache() *Cache {
	return &Cache{
		table:   make(map[tableKey]domain.Tick),
		enabled: make(map[string]bool),
	}
}

// UpdateQuote overwrites the cached entry for (instrument, tick.Kind). If
// the instrument is in the enabled set, the registered callback is invoked
// with the tick before UpdateQuote returns. Safe for concurrent producers.
func (c *Cache) UpdateQuote(instrument string, tick domain.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.table[tableKey{instrument, tick.Kind}] = tick

	c.subMu.Lock()
	cb := c.callback
	hot := c.enabled[instrument]
	c.subMu.Unlock()

	if hot && cb != nil {
		cb(instrument, tick)
	}
}

// LastQuote returns the cached tick for (instrument, kind), or the
// zero-value sentinel tick when nothing has been cached yet. It never blocks
// on producers beyond the table lock.
func (c *Cache) LastQuote(instrument string, kind domain.DataKind) domain.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table[tableKey{instrument, kind}]
}

// SetTickCallback replaces the single subscriber callback. The cache is a
// single-consumer design: one matching engine per cache instance.
func (c *Cache) SetTickCallback(cb TickCallback) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.callback = cb
}

// EnableTicker adds the instrument to the fan-out set. Idempotent.
func (c *Cache) EnableTicker(instrument string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.enabled[instrument] = true
}

// DisableTicker removes the instrument from the fan-out set. Callable from
// within the tick callback.
func (c *Cache) DisableTicker(instrument string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.enabled, instrument)
}

// TickerEnabled reports whether the instrument is currently in the fan-out
// set.
func (c *Cache) TickerEnabled(instrument string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return c.enabled[instrument]
}
