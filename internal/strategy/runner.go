package strategy

import (
	"context"
	"log/slog"

	"vulcan/internal/broker"
	"vulcan/internal/domain"
)

// Runner drives one strategy from market data and broker events. Ticks and
// trades arrive on producer goroutines (the feed fanout and broker reactor
// callbacks) and are queued onto an internal channel; the strategy itself
// runs on the Run goroutine, so it may submit orders freely without
// re-entering the broker or the quote cache from a callback.
type Runner struct {
	strategy Strategy
	broker   broker.Broker
	account  string

	events chan runnerEvent

	log *slog.Logger
}

type runnerEvent struct {
	tick  *domain.Tick
	trade *domain.Trade
}

// runnerQueueDepth bounds buffered events. A full queue drops ticks rather
// than blocking the feed.
const runnerQueueDepth = 1024

// NewRunner creates a runner submitting the strategy's orders to the broker
// under the given account.
func NewRunner(s Strategy, b broker.Broker, account string, log *slog.Logger) *Runner {
	return &Runner{
		strategy: s,
		broker:   b,
		account:  account,
		events:   make(chan runnerEvent, runnerQueueDepth),
		log:      log.With("component", "runner", "strategy", s.Name()),
	}
}

// OnTick queues a market-data tick. Safe to call from the feed goroutine.
func (r *Runner) OnTick(tick domain.Tick) {
	select {
	case r.events <- runnerEvent{tick: &tick}:
	default:
		r.log.Warn("event queue full, dropping tick", "instrument", tick.Instrument)
	}
}

// OrderCallback implements broker.Reactor. Order transitions are not fed to
// strategies; they react to fills only.
func (r *Runner) OrderCallback(*domain.Order) {}

// TradeCallback implements broker.Reactor and queues the fill.
func (r *Runner) TradeCallback(trade domain.Trade) {
	if trade.Account != r.account {
		return
	}
	select {
	case r.events <- runnerEvent{trade: &trade}:
	default:
		r.log.Warn("event queue full, dropping trade", "orderID", trade.OrderID)
	}
}

// Run initializes the strategy and processes queued events until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.strategy.Init(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.events:
			r.handle(ctx, ev)
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev runnerEvent) {
	var signals []Signal
	var err error
	switch {
	case ev.tick != nil:
		signals, err = r.strategy.OnTick(ctx, *ev.tick)
	case ev.trade != nil:
		signals, err = r.strategy.OnTrade(ctx, *ev.trade)
	}
	if err != nil {
		r.log.Error("strategy error", "error", err)
		return
	}
	for _, signal := range signals {
		r.submit(signal)
	}
}

// submit turns one signal into a market order.
func (r *Runner) submit(signal Signal) {
	if signal.Quantity <= 0 || signal.Operation == domain.OperationUnknown {
		r.log.Warn("ignoring malformed signal", "signal", signal)
		return
	}
	order := domain.NewMarketOrder(r.account, signal.Instrument, signal.Operation, signal.Quantity)
	order.SignalID = signal.ID
	r.log.Info("submitting signal order",
		"signalID", signal.ID, "localID", order.LocalID,
		"instrument", signal.Instrument, "operation", signal.Operation.String(),
		"quantity", signal.Quantity)
	r.broker.SubmitOrder(order)
}
