package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Operation is the order direction.
type Operation int

const (
	OperationUnknown Operation = iota
	Buy
	Sell
)

// String returns "buy" or "sell".
func (op Operation) String() string {
	switch op {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseOperation converts a wire name into an Operation.
func ParseOperation(s string) Operation {
	switch s {
	case "buy":
		return Buy
	case "sell":
		return Sell
	default:
		return OperationUnknown
	}
}

// MarshalJSON encodes the operation as its wire name.
func (op Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

// UnmarshalJSON decodes an operation from its wire name.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*op = ParseOperation(s)
	return nil
}

// OrderType selects the execution style of an order.
type OrderType int

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
)

// String returns "market" or "limit".
func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	default:
		return "unknown"
	}
}

// ParseOrderType converts a wire name into an OrderType.
func ParseOrderType(s string) OrderType {
	switch s {
	case "market":
		return OrderTypeMarket
	case "limit":
		return OrderTypeLimit
	default:
		return OrderTypeUnknown
	}
}

// OrderState tracks the lifecycle of an order. Terminal states are final:
// no further transition is permitted once an order is Executed, Cancelled,
// or Rejected.
type OrderState int

const (
	StateCreated OrderState = iota
	StateSubmitted
	StatePartiallyExecuted
	StateExecuted
	StateCancelled
	StateRejected
)

// String returns the lowercase state name.
func (s OrderState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StatePartiallyExecuted:
		return "partially_executed"
	case StateExecuted:
		return "executed"
	case StateCancelled:
		return "cancelled"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state permits no further transitions.
func (s OrderState) Terminal() bool {
	switch s {
	case StateExecuted, StateCancelled, StateRejected:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidTransition is returned when an order state change violates
	// the lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid order state transition")

	// ErrInvalidFill is returned when a fill quantity is non-positive or
	// would push the executed quantity past the order quantity.
	ErrInvalidFill = errors.New("invalid fill quantity")
)

// localIDCounter assigns process-local order ids, monotonically, at
// creation time.
var localIDCounter atomic.Int64

// NextLocalID returns the next process-local order id.
func NextLocalID() int64 {
	return localIDCounter.Add(1)
}

// Order is the mutable record of a single order's life. It is owned by the
// broker that accepted it; other components hold references for lookup only.
// Immutable identity and terms are plain fields set at creation; the mutable
// state, executed quantity, and message are guarded by an internal mutex so
// reactors on other goroutines always observe consistent values.
type Order struct {
	LocalID    int64
	ClientID   int64
	SignalID   int64
	Account    string
	Instrument string
	Operation  Operation
	Type       OrderType
	Price      decimal.Decimal // meaningful for limit orders only
	Quantity   int64

	mu          sync.Mutex
	state       OrderState
	executedQty int64
	message     string
}

// NewMarketOrder creates a market order in the Created state with a freshly
// assigned local id.
func NewMarketOrder(account, instrument string, op Operation, quantity int64) *Order {
	return &Order{
		LocalID:    NextLocalID(),
		Account:    account,
		Instrument: instrument,
		Operation:  op,
		Type:       OrderTypeMarket,
		Quantity:   quantity,
	}
}

// NewLimitOrder creates a limit order in the Created state with a freshly
// assigned local id.
func NewLimitOrder(account, instrument string, op Operation, price decimal.Decimal, quantity int64) *Order {
	return &Order{
		LocalID:    NextLocalID(),
		Account:    account,
		Instrument: instrument,
		Operation:  op,
		Type:       OrderTypeLimit,
		Price:      price,
		Quantity:   quantity,
	}
}

// State returns the current lifecycle state.
func (o *Order) State() OrderState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ExecutedQuantity returns how much of the order has filled so far.
func (o *Order) ExecutedQuantity() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.executedQty
}

// Message returns the human-readable rejection or explanation text, if any.
func (o *Order) Message() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.message
}

// Submit transitions the order from Created to Submitted.
func (o *Order) Submit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transition(StateSubmitted)
}

// Reject moves the order to the terminal Rejected state and records the
// reason. Valid from Created and Submitted.
func (o *Order) Reject(msg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.transition(StateRejected); err != nil {
		return err
	}
	o.message = msg
	return nil
}

// Cancel moves the order to the terminal Cancelled state. Valid from
// Submitted and PartiallyExecuted.
func (o *Order) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transition(StateCancelled)
}

// Fill records qty units executed. A fill that completes the order moves it
// to Executed; anything less moves it to PartiallyExecuted. A fill arriving
// while the order is still Created implies submission and passes through
// Submitted without a separate transition. The executed quantity never
// exceeds the order quantity and equals it exactly when the state is
// Executed.
func (o *Order) Fill(qty int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if qty <= 0 || o.executedQty+qty > o.Quantity {
		return ErrInvalidFill
	}
	if o.state == StateCreated {
		if err := o.transition(StateSubmitted); err != nil {
			return err
		}
	}

	next := StatePartiallyExecuted
	if o.executedQty+qty == o.Quantity {
		next = StateExecuted
	}
	if err := o.transition(next); err != nil {
		return err
	}
	o.executedQty += qty
	return nil
}

// transition validates and applies a state change. Callers hold o.mu.
func (o *Order) transition(next OrderState) error {
	if !validTransition(o.state, next) {
		return fmt.Errorf("%w: %s -> %s (order %d)", ErrInvalidTransition, o.state, next, o.LocalID)
	}
	o.state = next
	return nil
}

// validTransition encodes the lifecycle state machine:
//
//	Created            -> Submitted | Rejected
//	Submitted          -> PartiallyExecuted | Executed | Cancelled | Rejected
//	PartiallyExecuted  -> PartiallyExecuted | Executed | Cancelled
//	Executed, Cancelled, Rejected are terminal.
func validTransition(from, to OrderState) bool {
	switch from {
	case StateCreated:
		return to == StateSubmitted || to == StateRejected
	case StateSubmitted:
		return to == StatePartiallyExecuted || to == StateExecuted ||
			to == StateCancelled || to == StateRejected
	case StatePartiallyExecuted:
		return to == StatePartiallyExecuted || to == StateExecuted ||
			to == StateCancelled
	default:
		return false
	}
}

// String renders the order for log output.
func (o *Order) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fmt.Sprintf("order[%d/%d] %s %s %d %s @ %s (%s, executed %d)",
		o.LocalID, o.ClientID, o.Operation, o.Type, o.Quantity,
		o.Instrument, o.Price, o.state, o.executedQty)
}

// OrderSnapshot is a plain, copyable view of an order's current state, used
// at serialization boundaries.
type OrderSnapshot struct {
	LocalID          int64           `json:"local_id"`
	ClientID         int64           `json:"client_id,omitempty"`
	SignalID         int64           `json:"signal_id,omitempty"`
	Account          string          `json:"account"`
	Instrument       string          `json:"instrument"`
	Operation        string          `json:"operation"`
	Type             string          `json:"type"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int64           `json:"quantity"`
	State            string          `json:"state"`
	ExecutedQuantity int64           `json:"executed_quantity"`
	Message          string          `json:"message,omitempty"`
}

// Snapshot returns a consistent copy of the order's identity and mutable
// state.
func (o *Order) Snapshot() OrderSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OrderSnapshot{
		LocalID:          o.LocalID,
		ClientID:         o.ClientID,
		SignalID:         o.SignalID,
		Account:          o.Account,
		Instrument:       o.Instrument,
		Operation:        o.Operation.String(),
		Type:             o.Type.String(),
		Price:            o.Price,
		Quantity:         o.Quantity,
		State:            o.state.String(),
		ExecutedQuantity: o.executedQty,
		Message:          o.message,
	}
}
