// Package strategy defines the Strategy interface for trading strategies, a
// Registry for managing implementations, and a Runner that feeds strategies
// with market data and turns their signals into orders.
package strategy

import (
	"context"
	"sort"
	"sync/atomic"

	"vulcan/internal/domain"
)

// Signal is a strategy's request to trade. The runner converts signals into
// market orders carrying the signal id for attribution.
type Signal struct {
	ID         int64
	Strategy   string
	Instrument string
	Operation  domain.Operation
	Quantity   int64
}

var signalIDCounter atomic.Int64

// NextSignalID returns the next process-local signal id.
func NextSignalID() int64 {
	return signalIDCounter.Add(1)
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs any one-time setup required before the strategy begins
	// processing market data.
	Init(ctx context.Context) error

	// OnTick is called for every market-data tick. It returns zero or more
	// trading signals.
	OnTick(ctx context.Context, tick domain.Tick) ([]Signal, error)

	// OnTrade is called for every fill of the strategy's own orders. It
	// returns zero or more trading signals.
	OnTrade(ctx context.Context, trade domain.Trade) ([]Signal, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
