package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
	"vulcan/internal/util"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// alpacaAPI is the slice of the Alpaca SDK client the adapter uses,
// extracted so reconciliation logic is testable without the network.
type alpacaAPI interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	CancelOrder(orderID string) error
	GetPositions() ([]alpaca.Position, error)
	GetAccount() (*alpaca.Account, error)
}

// streamFunc opens the venue's trade-update stream and invokes handler for
// every event until ctx is cancelled or the stream breaks.
type streamFunc func(ctx context.Context, handler func(alpaca.TradeUpdate)) error

// AlpacaBroker implements the Broker contract against the Alpaca trading
// API. Orders it accepts are reconciled asynchronously: acknowledgements,
// partial fills, full fills, cancellations, and rejections arrive on the
// venue's trade-update stream and are translated into order state
// transitions and trades fanned out to reactors exactly like the paper
// engine's. Unlike the paper engine, partial fills are real here and each
// one emits an intermediate trade.
//
// The adapter object is owned by the composing server; vendor callbacks
// reach it through the closure passed to the stream, never a global.
type AlpacaBroker struct {
	client  alpacaAPI
	stream  streamFunc
	account string

	// limiter throttles outbound API calls; nil disables throttling.
	limiter *util.RateLimiter

	mu        sync.Mutex
	reactors  []Reactor
	byLocalID map[int64]*domain.Order
	byVenueID map[string]*domain.Order
	venueIDs  map[int64]string

	log *slog.Logger
}

// alpacaRequestsPerMinute matches the venue's published API rate limit.
const alpacaRequestsPerMinute = 200

// NewAlpacaBroker connects to Alpaca with the given credentials and
// resolves the account identifier. Credential or connectivity problems are
// contract errors at the adapter boundary and fail fast.
func NewAlpacaBroker(ctx context.Context, apiKey, apiSecret, baseURL string, log *slog.Logger) (*AlpacaBroker, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	var acct *alpaca.Account
	err := util.Retry(ctx, 3, time.Second, func() error {
		var err error
		acct, err = client.GetAccount()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolving alpaca account: %w", err)
	}

	return &AlpacaBroker{
		client: client,
		stream: func(ctx context.Context, handler func(alpaca.TradeUpdate)) error {
			return client.StreamTradeUpdates(ctx, handler, alpaca.StreamTradeUpdatesRequest{})
		},
		account:   acct.AccountNumber,
		limiter:   util.NewRateLimiter(alpacaRequestsPerMinute),
		byLocalID: make(map[int64]*domain.Order),
		byVenueID: make(map[string]*domain.Order),
		venueIDs:  make(map[int64]string),
		log:       log.With("broker", "alpaca"),
	}, nil
}

// Name returns "alpaca".
func (a *AlpacaBroker) Name() string { return "alpaca" }

// Run consumes the venue's trade-update stream, reconnecting with a fixed
// delay until ctx is cancelled. Call it on its own goroutine.
func (a *AlpacaBroker) Run(ctx context.Context) error {
	const reconnectDelay = 5 * time.Second
	for {
		err := a.stream(ctx, a.handleTradeUpdate)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Error("trade update stream ended", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// SubmitOrder sends the order to the venue. A transport or validation error
// becomes a Rejected state with the error text as message, never an error
// return. On success the order moves to Submitted; fills arrive later via
// the trade-update stream.
func (a *AlpacaBroker) SubmitOrder(order *domain.Order) {
	req := alpaca.PlaceOrderRequest{
		Symbol:        order.Instrument,
		Qty:           decimalPtr(decimal.NewFromInt(order.Quantity)),
		Side:          alpacaSide(order.Operation),
		Type:          alpacaOrderType(order.Type),
		TimeInForce:   alpaca.Day,
		ClientOrderID: strconv.FormatInt(order.LocalID, 10),
	}
	if order.Type == domain.OrderTypeLimit {
		req.LimitPrice = decimalPtr(order.Price)
	}

	a.mu.Lock()
	a.byLocalID[order.LocalID] = order
	a.mu.Unlock()

	a.throttle()
	placed, err := a.client.PlaceOrder(req)

	a.mu.Lock()
	var events []event
	if err != nil {
		a.log.Warn("place order failed", "localID", order.LocalID, "error", err)
		if rerr := order.Reject(err.Error()); rerr != nil {
			a.log.Error("rejecting failed order", "error", rerr)
		} else {
			events = append(events, event{order: order})
		}
	} else {
		a.byVenueID[placed.ID] = order
		a.venueIDs[order.LocalID] = placed.ID
		if serr := order.Submit(); serr != nil {
			a.log.Error("marking order submitted", "error", serr)
		} else {
			events = append(events, event{order: order})
		}
	}
	reactors := append([]Reactor(nil), a.reactors...)
	a.mu.Unlock()

	deliver(reactors, events)
}

// CancelOrder asks the venue to cancel. The resulting state transition, if
// any, arrives on the trade-update stream.
func (a *AlpacaBroker) CancelOrder(order *domain.Order) {
	a.mu.Lock()
	venueID, ok := a.venueIDs[order.LocalID]
	a.mu.Unlock()
	if !ok {
		a.log.Warn("cancel for order without venue id", "localID", order.LocalID)
		return
	}
	a.throttle()
	if err := a.client.CancelOrder(venueID); err != nil {
		a.log.Warn("cancel order failed", "localID", order.LocalID, "error", err)
	}
}

// throttle blocks until the venue rate limit allows another request.
func (a *AlpacaBroker) throttle() {
	if a.limiter == nil {
		return
	}
	if err := a.limiter.Wait(context.Background()); err != nil {
		a.log.Warn("rate limiter wait", "error", err)
	}
}

// RegisterReactor adds an observer.
func (a *AlpacaBroker) RegisterReactor(r Reactor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reactors = append(a.reactors, r)
}

// UnregisterReactor removes an observer.
func (a *AlpacaBroker) UnregisterReactor(r Reactor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.reactors {
		if existing == r {
			a.reactors = append(a.reactors[:i], a.reactors[i+1:]...)
			return
		}
	}
}

// Order returns the order with the given local id.
func (a *AlpacaBroker) Order(localID int64) (*domain.Order, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.byLocalID[localID]
	return o, ok
}

// Accounts returns the single venue account.
func (a *AlpacaBroker) Accounts() []string {
	return []string{a.account}
}

// HasAccount reports whether account is the venue account.
func (a *AlpacaBroker) HasAccount(account string) bool {
	return account == a.account
}

// Positions fetches current venue positions. A fetch failure yields an
// empty slice with a log entry; the contract has no error channel.
func (a *AlpacaBroker) Positions() []domain.Position {
	positions, err := a.client.GetPositions()
	if err != nil {
		a.log.Error("fetching positions", "error", err)
		return nil
	}
	result := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		result = append(result, domain.Position{
			Instrument: p.Symbol,
			Quantity:   p.Qty.IntPart(),
		})
	}
	return result
}

// handleTradeUpdate reconciles one venue event into order state and trades.
// It runs on the stream goroutine.
func (a *AlpacaBroker) handleTradeUpdate(tu alpaca.TradeUpdate) {
	a.mu.Lock()
	order, ok := a.lookupLocked(tu.Order)
	if !ok {
		a.mu.Unlock()
		a.log.Debug("trade update for unknown order", "venueID", tu.Order.ID, "event", tu.Event)
		return
	}

	var events []event
	switch tu.Event {
	case "new", "accepted", "pending_new":
		// Acknowledgement. Only notify when this actually advances the
		// order; a late ack after the first fill is stale.
		if order.State() == domain.StateCreated {
			if err := order.Submit(); err != nil {
				a.log.Error("applying ack", "localID", order.LocalID, "error", err)
			} else {
				events = append(events, event{order: order})
			}
		}
	case "fill", "partial_fill":
		events = a.applyFillLocked(events, order, tu)
	case "canceled", "expired", "done_for_day":
		if err := order.Cancel(); err != nil {
			a.log.Warn("applying cancel", "localID", order.LocalID, "error", err)
		} else {
			events = append(events, event{order: order})
		}
	case "rejected":
		if err := order.Reject("rejected by venue"); err != nil {
			a.log.Warn("applying rejection", "localID", order.LocalID, "error", err)
		} else {
			events = append(events, event{order: order})
		}
	default:
		a.log.Debug("unhandled trade update event", "event", tu.Event)
	}

	reactors := append([]Reactor(nil), a.reactors...)
	a.mu.Unlock()

	deliver(reactors, events)
}

// lookupLocked resolves a venue order to the local order, by venue id first
// and the client order id (which carries our local id) second. Callers hold
// a.mu.
func (a *AlpacaBroker) lookupLocked(venueOrder alpaca.Order) (*domain.Order, bool) {
	if o, ok := a.byVenueID[venueOrder.ID]; ok {
		return o, true
	}
	localID, err := strconv.ParseInt(venueOrder.ClientOrderID, 10, 64)
	if err != nil {
		return nil, false
	}
	o, ok := a.byLocalID[localID]
	if ok && venueOrder.ID != "" {
		a.byVenueID[venueOrder.ID] = o
		a.venueIDs[o.LocalID] = venueOrder.ID
	}
	return o, ok
}

// applyFillLocked applies a full or partial fill event, emitting one trade
// per fill. Callers hold a.mu.
func (a *AlpacaBroker) applyFillLocked(events []event, order *domain.Order, tu alpaca.TradeUpdate) []event {
	qty := fillQuantity(order, tu)
	if qty <= 0 {
		a.log.Warn("fill with no quantity", "localID", order.LocalID, "event", tu.Event)
		return events
	}
	price := decimal.Zero
	if tu.Price != nil {
		price = *tu.Price
	}

	if err := order.Fill(qty); err != nil {
		a.log.Error("applying fill", "localID", order.LocalID, "error", err)
		return events
	}

	ts := tu.At
	if ts.IsZero() {
		ts = time.Now()
	}
	trade := &domain.Trade{
		OrderID:    order.ClientID,
		Account:    order.Account,
		Instrument: order.Instrument,
		Operation:  order.Operation,
		Price:      price,
		Quantity:   qty,
		Volume:     price.Mul(decimal.NewFromInt(qty)),
		Currency:   "USD",
		Timestamp:  ts.Unix(),
		Useconds:   uint32(ts.Nanosecond() / 1000),
		SignalID:   order.SignalID,
	}
	return append(events, event{trade: trade}, event{order: order})
}

// fillQuantity extracts the incremental fill size from the event, falling
// back to the venue's cumulative filled quantity when the event quantity is
// absent.
func fillQuantity(order *domain.Order, tu alpaca.TradeUpdate) int64 {
	if tu.Qty != nil && !tu.Qty.IsZero() {
		return tu.Qty.IntPart()
	}
	return tu.Order.FilledQty.IntPart() - order.ExecutedQuantity()
}

func alpacaSide(op domain.Operation) alpaca.Side {
	if op == domain.Sell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func alpacaOrderType(t domain.OrderType) alpaca.OrderType {
	if t == domain.OrderTypeLimit {
		return alpaca.Limit
	}
	return alpaca.Market
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
