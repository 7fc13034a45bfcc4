package broker

import (
	"log/slog"
	"sync"

	"vulcan/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*Router)(nil)

// Router composes several brokers behind the Broker contract and dispatches
// each order to the venue serving its account. Reactors registered on the
// router are registered on every underlying broker, so callers observe one
// unified event stream. Each underlying broker keeps its own lock; the
// router never holds its own lock across a call into a broker.
type Router struct {
	mu       sync.Mutex
	brokers  []Broker
	reactors []Reactor

	log *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(log *slog.Logger) *Router {
	return &Router{log: log.With("broker", "router")}
}

// Name returns "router".
func (r *Router) Name() string { return "router" }

// AddBroker registers a venue. Reactors already registered on the router
// are attached to it.
func (r *Router) AddBroker(b Broker) {
	r.mu.Lock()
	r.brokers = append(r.brokers, b)
	reactors := append([]Reactor(nil), r.reactors...)
	r.mu.Unlock()

	for _, reactor := range reactors {
		b.RegisterReactor(reactor)
	}
}

// BrokerForAccount returns the first broker serving the account.
func (r *Router) BrokerForAccount(account string) (Broker, bool) {
	for _, b := range r.snapshot() {
		if b.HasAccount(account) {
			return b, true
		}
	}
	return nil, false
}

// SubmitOrder routes the order to the broker serving its account. An order
// for an unknown account is rejected and the rejection is delivered to the
// router's own reactors, since no venue ever saw the order.
func (r *Router) SubmitOrder(order *domain.Order) {
	b, ok := r.BrokerForAccount(order.Account)
	if !ok {
		r.log.Warn("no broker for account", "account", order.Account, "localID", order.LocalID)
		if err := order.Reject("unknown account: " + order.Account); err != nil {
			r.log.Error("rejecting unroutable order", "error", err)
			return
		}
		r.mu.Lock()
		reactors := append([]Reactor(nil), r.reactors...)
		r.mu.Unlock()
		deliver(reactors, []event{{order: order}})
		return
	}
	b.SubmitOrder(order)
}

// CancelOrder routes the cancellation to the broker serving the order's
// account. Cancels for unknown accounts are dropped with a log entry.
func (r *Router) CancelOrder(order *domain.Order) {
	b, ok := r.BrokerForAccount(order.Account)
	if !ok {
		r.log.Warn("cancel for unknown account", "account", order.Account, "localID", order.LocalID)
		return
	}
	b.CancelOrder(order)
}

// RegisterReactor attaches the reactor to every current and future broker.
func (r *Router) RegisterReactor(reactor Reactor) {
	r.mu.Lock()
	r.reactors = append(r.reactors, reactor)
	brokers := append([]Broker(nil), r.brokers...)
	r.mu.Unlock()

	for _, b := range brokers {
		b.RegisterReactor(reactor)
	}
}

// UnregisterReactor detaches the reactor from every broker.
func (r *Router) UnregisterReactor(reactor Reactor) {
	r.mu.Lock()
	for i, existing := range r.reactors {
		if existing == reactor {
			r.reactors = append(r.reactors[:i], r.reactors[i+1:]...)
			break
		}
	}
	brokers := append([]Broker(nil), r.brokers...)
	r.mu.Unlock()

	for _, b := range brokers {
		b.UnregisterReactor(reactor)
	}
}

// Order searches every broker for the given local id.
func (r *Router) Order(localID int64) (*domain.Order, bool) {
	for _, b := range r.snapshot() {
		if o, ok := b.Order(localID); ok {
			return o, true
		}
	}
	return nil, false
}

// Accounts aggregates the accounts of every broker.
func (r *Router) Accounts() []string {
	var result []string
	for _, b := range r.snapshot() {
		result = append(result, b.Accounts()...)
	}
	return result
}

// HasAccount reports whether any broker serves the account.
func (r *Router) HasAccount(account string) bool {
	_, ok := r.BrokerForAccount(account)
	return ok
}

// Positions aggregates positions across every broker.
func (r *Router) Positions() []domain.Position {
	var result []domain.Position
	for _, b := range r.snapshot() {
		result = append(result, b.Positions()...)
	}
	return result
}

func (r *Router) snapshot() []Broker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Broker(nil), r.brokers...)
}
