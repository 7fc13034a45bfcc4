package broker

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*RiskGuard)(nil)

// RiskGuard wraps a broker with pre-trade checks. Orders violating a limit
// are rejected before the venue ever sees them; everything else passes
// through untouched. Zero-valued limits are not enforced.
type RiskGuard struct {
	inner Broker

	// MaxOrderQuantity caps the size of a single order.
	MaxOrderQuantity int64

	// MaxOrderNotional caps price*quantity for limit orders. Market orders
	// have no known price and are exempt.
	MaxOrderNotional decimal.Decimal

	mu       sync.Mutex
	reactors []Reactor

	log *slog.Logger
}

// NewRiskGuard wraps inner with the given limits.
func NewRiskGuard(inner Broker, maxQuantity int64, maxNotional decimal.Decimal, log *slog.Logger) *RiskGuard {
	return &RiskGuard{
		inner:            inner,
		MaxOrderQuantity: maxQuantity,
		MaxOrderNotional: maxNotional,
		log:              log.With("broker", "risk"),
	}
}

// Name returns the wrapped broker's name.
func (g *RiskGuard) Name() string { return g.inner.Name() }

// SubmitOrder enforces the limits and forwards compliant orders. A rejection
// is delivered to the guard's own reactors, since the inner broker never saw
// the order.
func (g *RiskGuard) SubmitOrder(order *domain.Order) {
	if reason := g.check(order); reason != "" {
		g.log.Warn("order rejected by risk check", "localID", order.LocalID, "reason", reason)
		if err := order.Reject(reason); err != nil {
			g.log.Error("rejecting order", "error", err)
			return
		}
		g.mu.Lock()
		reactors := append([]Reactor(nil), g.reactors...)
		g.mu.Unlock()
		deliver(reactors, []event{{order: order}})
		return
	}
	g.inner.SubmitOrder(order)
}

// check returns a rejection reason, or "" when the order is compliant.
func (g *RiskGuard) check(order *domain.Order) string {
	if g.MaxOrderQuantity > 0 && order.Quantity > g.MaxOrderQuantity {
		return fmt.Sprintf("quantity %d exceeds limit %d", order.Quantity, g.MaxOrderQuantity)
	}
	if g.MaxOrderNotional.IsPositive() && order.Type == domain.OrderTypeLimit {
		notional := order.Price.Mul(decimal.NewFromInt(order.Quantity))
		if notional.GreaterThan(g.MaxOrderNotional) {
			return fmt.Sprintf("notional %s exceeds limit %s", notional, g.MaxOrderNotional)
		}
	}
	return ""
}

// CancelOrder forwards to the wrapped broker.
func (g *RiskGuard) CancelOrder(order *domain.Order) {
	g.inner.CancelOrder(order)
}

// RegisterReactor attaches the reactor to the guard and the wrapped broker.
func (g *RiskGuard) RegisterReactor(r Reactor) {
	g.mu.Lock()
	g.reactors = append(g.reactors, r)
	g.mu.Unlock()
	g.inner.RegisterReactor(r)
}

// UnregisterReactor detaches the reactor from the guard and the wrapped
// broker.
func (g *RiskGuard) UnregisterReactor(r Reactor) {
	g.mu.Lock()
	for i, existing := range g.reactors {
		if existing == r {
			g.reactors = append(g.reactors[:i], g.reactors[i+1:]...)
			break
		}
	}
	g.mu.Unlock()
	g.inner.UnregisterReactor(r)
}

// Order forwards to the wrapped broker.
func (g *RiskGuard) Order(localID int64) (*domain.Order, bool) {
	return g.inner.Order(localID)
}

// Accounts forwards to the wrapped broker.
func (g *RiskGuard) Accounts() []string { return g.inner.Accounts() }

// HasAccount forwards to the wrapped broker.
func (g *RiskGuard) HasAccount(account string) bool { return g.inner.HasAccount(account) }

// Positions forwards to the wrapped broker.
func (g *RiskGuard) Positions() []domain.Position { return g.inner.Positions() }
