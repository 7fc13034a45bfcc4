package broker

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
	"vulcan/internal/quote"
)

// Compile-time interface check.
var _ Broker = (*PaperBroker)(nil)

// paperAccount is the single synthetic account the simulated engine serves.
const paperAccount = "demo"

// paperCurrency is stamped on every simulated trade.
const paperCurrency = "TEST"

// PaperBroker is the simulated matching engine. It fills orders against the
// latest quotes in a cache: market orders immediately at top-of-book, limit
// orders either immediately when marketable or later when a qualifying tick
// arrives. Fills are always all-or-nothing; the PartiallyExecuted state is
// reachable only through live venue adapters.
//
// A single mutex serializes SubmitOrder, incomingTick, and all
// pending-order bookkeeping. Reactor notifications produced during a locked
// pass are collected and delivered after the mutex is released, so
// notification logic can never need to re-enter the lock.
type PaperBroker struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	portfolio map[string]int64
	pending   []*domain.Order
	all       []*domain.Order
	byLocalID map[int64]*domain.Order
	reactors  []Reactor

	table *quote.Cache
	log   *slog.Logger
}

// NewPaperBroker creates a simulated engine with the given starting cash,
// reading and subscribing to quotes from table. The broker installs itself
// as the cache's tick callback.
func NewPaperBroker(startCash decimal.Decimal, table *quote.Cache, log *slog.Logger) *PaperBroker {
	b := &PaperBroker{
		cash:      startCash,
		portfolio: make(map[string]int64),
		byLocalID: make(map[int64]*domain.Order),
		table:     table,
		log:       log.With("broker", "paper"),
	}
	table.SetTickCallback(b.incomingTick)
	return b
}

// Name returns "paper".
func (b *PaperBroker) Name() string { return "paper" }

// SubmitOrder evaluates the order against the latest cached quotes. Market
// orders fill or reject immediately; limit orders fill immediately when
// marketable or register as pending. Unsupported order types are logged and
// ignored without a reactor notification.
func (b *PaperBroker) SubmitOrder(order *domain.Order) {
	// Quotes are read before taking the engine lock: producers hold the
	// cache lock while calling into incomingTick, so the engine must never
	// wait on the cache while holding its own lock.
	bidTick := b.table.LastQuote(order.Instrument, domain.KindBestBid)
	offerTick := b.table.LastQuote(order.Instrument, domain.KindBestOffer)

	b.mu.Lock()
	b.all = append(b.all, order)
	b.byLocalID[order.LocalID] = order
	b.log.Info("order submitted", "order", order.String())

	var events []event
	if order.Quantity <= 0 {
		b.log.Warn("non-positive quantity", "localID", order.LocalID, "quantity", order.Quantity)
		mustTransition(order.Reject("non-positive quantity"))
		events = append(events, event{order: order})
	} else {
		switch order.Type {
		case domain.OrderTypeMarket:
			events = b.submitMarket(order, bidTick, offerTick)
		case domain.OrderTypeLimit:
			events = b.submitLimit(order, bidTick, offerTick)
		default:
			// Known gap, not a silent success: the order stays in Created and
			// no reactor is notified.
			b.log.Warn("unsupported order type", "type", order.Type.String(), "localID", order.LocalID)
		}
	}
	b.log.Debug("cash", "cash", b.cash)

	reactors := append([]Reactor(nil), b.reactors...)
	b.mu.Unlock()

	deliver(reactors, events)
}

// submitMarket handles a market order. Callers hold b.mu.
func (b *PaperBroker) submitMarket(order *domain.Order, bidTick, offerTick domain.Tick) []event {
	var events []event
	switch order.Operation {
	case domain.Buy:
		if offerTick.Value.IsZero() {
			b.log.Debug("no offers", "instrument", order.Instrument)
			mustTransition(order.Reject("no offers"))
		} else {
			volume := offerTick.Value.Mul(decimal.NewFromInt(order.Quantity))
			if b.cash.LessThan(volume) {
				b.log.Warn("not enough cash", "cash", b.cash, "volume", volume)
				mustTransition(order.Reject("insufficient cash"))
			} else {
				events = b.executeBuyAt(events, order, offerTick.Value, offerTick.Timestamp, offerTick.Useconds)
			}
		}
	case domain.Sell:
		if bidTick.Value.IsZero() {
			b.log.Debug("no bids", "instrument", order.Instrument)
			mustTransition(order.Reject("no bids"))
		} else {
			events = b.executeSellAt(events, order, bidTick.Value, bidTick.Timestamp, bidTick.Useconds)
		}
	}
	return append(events, event{order: order})
}

// submitLimit handles a limit order: immediately marketable orders execute
// at the current top-of-book, everything else goes pending. Callers hold
// b.mu.
func (b *PaperBroker) submitLimit(order *domain.Order, bidTick, offerTick domain.Tick) []event {
	var events []event
	switch order.Operation {
	case domain.Buy:
		if !offerTick.Value.IsZero() && offerTick.Value.LessThanOrEqual(order.Price) {
			volume := offerTick.Value.Mul(decimal.NewFromInt(order.Quantity))
			if b.cash.LessThan(volume) {
				b.log.Debug("not enough cash", "cash", b.cash, "volume", volume)
				mustTransition(order.Reject("insufficient cash"))
			} else {
				events = b.executeBuyAt(events, order, offerTick.Value, offerTick.Timestamp, offerTick.Useconds)
			}
		} else {
			b.addPendingOrder(order)
		}
	case domain.Sell:
		if !bidTick.Value.IsZero() && bidTick.Value.GreaterThanOrEqual(order.Price) {
			events = b.executeSellAt(events, order, bidTick.Value, bidTick.Timestamp, bidTick.Useconds)
		} else {
			b.addPendingOrder(order)
		}
	}
	return append(events, event{order: order})
}

// CancelOrder is accepted but ineffective in the simulated engine: pending
// orders rest until a qualifying tick fills them.
func (b *PaperBroker) CancelOrder(order *domain.Order) {
	b.log.Debug("cancel ignored", "localID", order.LocalID)
}

// RegisterReactor adds an observer.
func (b *PaperBroker) RegisterReactor(r Reactor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reactors = append(b.reactors, r)
}

// UnregisterReactor is accepted but ineffective in the simulated engine.
func (b *PaperBroker) UnregisterReactor(Reactor) {}

// Order returns the order with the given local id.
func (b *PaperBroker) Order(localID int64) (*domain.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.byLocalID[localID]
	return o, ok
}

// Orders returns a snapshot of every order this broker has seen, in
// submission order.
func (b *PaperBroker) Orders() []*domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*domain.Order(nil), b.all...)
}

// Accounts returns the single synthetic account.
func (b *PaperBroker) Accounts() []string {
	return []string{paperAccount}
}

// HasAccount reports whether account is the synthetic paper account.
func (b *PaperBroker) HasAccount(account string) bool {
	return account == paperAccount
}

// Positions returns the portfolio as signed per-instrument quantities,
// sorted by instrument.
func (b *PaperBroker) Positions() []domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]domain.Position, 0, len(b.portfolio))
	for instrument, qty := range b.portfolio {
		result = append(result, domain.Position{Instrument: instrument, Quantity: qty})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Instrument < result[j].Instrument
	})
	return result
}

// Cash returns the current cash balance.
func (b *PaperBroker) Cash() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}

// addPendingOrder transitions the order to Submitted, appends it to the
// pending list, and marks its instrument hot in the quote cache. Callers
// hold b.mu; EnableTicker touches only the cache's subscription lock.
func (b *PaperBroker) addPendingOrder(order *domain.Order) {
	mustTransition(order.Submit())
	b.pending = append(b.pending, order)
	b.table.EnableTicker(order.Instrument)
}

// incomingTick is the cache's tick callback. It scans pending orders on the
// tick's instrument in insertion order and fills every one the tick
// crosses, each at its own limit price. It runs on the producer's goroutine
// with the cache's table lock held.
func (b *PaperBroker) incomingTick(instrument string, tick domain.Tick) {
	b.mu.Lock()
	b.log.Debug("incoming tick", "instrument", instrument, "kind", tick.Kind.String(), "value", tick.Value)

	var events []event
	filled := false
	remaining := b.pending[:0]
	for _, order := range b.pending {
		if order.Instrument != instrument || !crosses(order, tick) {
			remaining = append(remaining, order)
			continue
		}
		// Execution happens at the order's own limit price, not at the
		// tick's value.
		if order.Operation == domain.Buy {
			events = b.executeBuyAt(events, order, order.Price, tick.Timestamp, tick.Useconds)
		} else {
			events = b.executeSellAt(events, order, order.Price, tick.Timestamp, tick.Useconds)
		}
		events = append(events, event{order: order})
		filled = true
	}
	b.pending = remaining

	if filled && !b.instrumentPending(instrument) {
		b.table.DisableTicker(instrument)
	}

	reactors := append([]Reactor(nil), b.reactors...)
	b.mu.Unlock()

	deliver(reactors, events)
}

// crosses reports whether the tick satisfies the pending order's limit. A
// buy fills on BestOffer or Price at or below the limit; a sell fills on
// BestBid or Price at or above it.
func crosses(order *domain.Order, tick domain.Tick) bool {
	switch order.Operation {
	case domain.Buy:
		return (tick.Kind == domain.KindBestOffer || tick.Kind == domain.KindPrice) &&
			tick.Value.LessThanOrEqual(order.Price)
	case domain.Sell:
		return (tick.Kind == domain.KindBestBid || tick.Kind == domain.KindPrice) &&
			tick.Value.GreaterThanOrEqual(order.Price)
	default:
		return false
	}
}

// instrumentPending reports whether any pending order still needs the
// instrument's ticker. Callers hold b.mu.
func (b *PaperBroker) instrumentPending(instrument string) bool {
	for _, order := range b.pending {
		if order.Instrument == instrument {
			return true
		}
	}
	return false
}

// executeBuyAt fills the whole order at price, debits cash, credits the
// portfolio, and queues the trade event. Callers hold b.mu.
func (b *PaperBroker) executeBuyAt(events []event, order *domain.Order, price decimal.Decimal, timestamp int64, useconds uint32) []event {
	b.log.Info("execute buy", "localID", order.LocalID, "price", price)
	volume := price.Mul(decimal.NewFromInt(order.Quantity))
	mustTransition(order.Fill(order.Quantity))
	b.portfolio[order.Instrument] += order.Quantity
	b.cash = b.cash.Sub(volume)
	return append(events, event{trade: b.newTrade(order, price, volume, timestamp, useconds)})
}

// executeSellAt fills the whole order at price, credits cash, debits the
// portfolio, and queues the trade event. Callers hold b.mu.
func (b *PaperBroker) executeSellAt(events []event, order *domain.Order, price decimal.Decimal, timestamp int64, useconds uint32) []event {
	b.log.Info("execute sell", "localID", order.LocalID, "price", price)
	volume := price.Mul(decimal.NewFromInt(order.Quantity))
	mustTransition(order.Fill(order.Quantity))
	b.portfolio[order.Instrument] -= order.Quantity
	b.cash = b.cash.Add(volume)
	return append(events, event{trade: b.newTrade(order, price, volume, timestamp, useconds)})
}

func (b *PaperBroker) newTrade(order *domain.Order, price, volume decimal.Decimal, timestamp int64, useconds uint32) *domain.Trade {
	return &domain.Trade{
		OrderID:    order.ClientID,
		Account:    order.Account,
		Instrument: order.Instrument,
		Operation:  order.Operation,
		Price:      price,
		Quantity:   order.Quantity,
		Volume:     volume,
		Currency:   paperCurrency,
		Timestamp:  timestamp,
		Useconds:   useconds,
		SignalID:   order.SignalID,
	}
}

// mustTransition aborts on an impossible internal state transition. The
// engine's own bookkeeping only ever requests legal transitions, so a
// failure here means corrupted state.
func mustTransition(err error) {
	if err != nil {
		panic(fmt.Sprintf("paper broker: %v", err))
	}
}
