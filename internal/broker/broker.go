// Package broker defines the Broker capability contract every execution
// venue implements, the Reactor observer protocol for order and trade
// events, the simulated paper-trading engine, an account-based router, and
// the Alpaca-backed live venue adapter.
package broker

import "vulcan/internal/domain"

// Broker abstracts an execution venue, simulated or live. All business
// outcomes of SubmitOrder are encoded in the order's state and delivered to
// reactors; the contract never returns errors for rejections. Each
// implementation is independently lockable: callers may drive different
// brokers from different goroutines freely.
type Broker interface {
	// Name returns the venue identifier (e.g. "paper", "alpaca").
	Name() string

	// SubmitOrder accepts an order for execution. It completes
	// synchronously: when it returns the order is filled, rejected, or
	// registered as pending, and all reactors have observed the resulting
	// state. Callers inspect order.State() afterwards.
	SubmitOrder(order *domain.Order)

	// CancelOrder requests cancellation of a previously submitted order.
	CancelOrder(order *domain.Order)

	// RegisterReactor adds an observer. Delivery order follows registration
	// order.
	RegisterReactor(r Reactor)

	// UnregisterReactor removes an observer.
	UnregisterReactor(r Reactor)

	// Order returns the order with the given local id, if this broker
	// accepted it.
	Order(localID int64) (*domain.Order, bool)

	// Accounts lists the account identifiers this broker serves.
	Accounts() []string

	// HasAccount reports whether the broker serves the given account.
	HasAccount(account string) bool

	// Positions returns the current per-instrument signed quantities.
	Positions() []domain.Position
}

// Reactor observes order state transitions and fills. Callbacks run
// synchronously with the triggering mutation, on the goroutine that caused
// it, after the broker has released its own lock; the reactor therefore
// never sees order state stale relative to the event. A reactor must not
// call back into the broker or the quote cache from inside a callback;
// queue that work to another goroutine instead.
type Reactor interface {
	// OrderCallback is invoked on every order state transition.
	OrderCallback(order *domain.Order)

	// TradeCallback is invoked on every fill.
	TradeCallback(trade domain.Trade)
}

// event is one queued reactor notification: either an order state change or
// a trade. Brokers collect events while holding their lock and deliver them
// after releasing it, preserving delivery-before-return without a reentrant
// lock.
type event struct {
	order *domain.Order
	trade *domain.Trade
}

// deliver pushes events to reactors in registration order. Within one
// batch, a trade event precedes the order state change it belongs to,
// matching the order the mutations happened in.
func deliver(reactors []Reactor, events []event) {
	for _, ev := range events {
		for _, r := range reactors {
			if ev.trade != nil {
				r.TradeCallback(*ev.trade)
			} else {
				r.OrderCallback(ev.order)
			}
		}
	}
}
