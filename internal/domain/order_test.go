package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLocalIDsMonotonic(t *testing.T) {
	a := NewMarketOrder("demo", "TEST#A", Buy, 1)
	b := NewLimitOrder("demo", "TEST#A", Sell, decimal.NewFromInt(10), 1)
	if b.LocalID <= a.LocalID {
		t.Errorf("local ids not monotonic: %d then %d", a.LocalID, b.LocalID)
	}
}

func TestOrderLifecycle(t *testing.T) {
	o := NewLimitOrder("demo", "TEST#A", Buy, decimal.NewFromInt(50), 10)
	if got := o.State(); got != StateCreated {
		t.Fatalf("new order state = %s, want created", got)
	}

	if err := o.Submit(); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if err := o.Fill(4); err != nil {
		t.Fatalf("Fill(4) error: %v", err)
	}
	if got := o.State(); got != StatePartiallyExecuted {
		t.Errorf("state after partial fill = %s, want partially_executed", got)
	}
	if got := o.ExecutedQuantity(); got != 4 {
		t.Errorf("executed quantity = %d, want 4", got)
	}

	if err := o.Fill(6); err != nil {
		t.Fatalf("Fill(6) error: %v", err)
	}
	if got := o.State(); got != StateExecuted {
		t.Errorf("state after full fill = %s, want executed", got)
	}
	if got := o.ExecutedQuantity(); got != o.Quantity {
		t.Errorf("executed quantity = %d, want %d", got, o.Quantity)
	}

	// Executed is terminal.
	if err := o.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Cancel() on executed order = %v, want ErrInvalidTransition", err)
	}
}

func TestFillFromCreatedImpliesSubmission(t *testing.T) {
	o := NewMarketOrder("demo", "TEST#A", Buy, 10)
	if err := o.Fill(10); err != nil {
		t.Fatalf("Fill from created: %v", err)
	}
	if got := o.State(); got != StateExecuted {
		t.Errorf("state = %s, want executed", got)
	}
}

func TestFillOverflowRejected(t *testing.T) {
	o := NewMarketOrder("demo", "TEST#A", Buy, 10)
	if err := o.Fill(11); !errors.Is(err, ErrInvalidFill) {
		t.Errorf("Fill(11) on qty-10 order = %v, want ErrInvalidFill", err)
	}
	if err := o.Fill(0); !errors.Is(err, ErrInvalidFill) {
		t.Errorf("Fill(0) = %v, want ErrInvalidFill", err)
	}
	if got := o.State(); got != StateCreated {
		t.Errorf("state after invalid fills = %s, want created", got)
	}
}

func TestRejectRecordsMessage(t *testing.T) {
	o := NewMarketOrder("demo", "TEST#A", Buy, 10)
	if err := o.Reject("no offers"); err != nil {
		t.Fatalf("Reject() error: %v", err)
	}
	if got := o.Message(); got != "no offers" {
		t.Errorf("message = %q, want %q", got, "no offers")
	}
	// Rejected is terminal.
	if err := o.Submit(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit() on rejected order = %v, want ErrInvalidTransition", err)
	}
}

func TestValidTransitionTable(t *testing.T) {
	cases := []struct {
		from, to OrderState
		want     bool
	}{
		{StateCreated, StateSubmitted, true},
		{StateCreated, StateRejected, true},
		{StateCreated, StateExecuted, false},
		{StateCreated, StateCancelled, false},
		{StateSubmitted, StatePartiallyExecuted, true},
		{StateSubmitted, StateExecuted, true},
		{StateSubmitted, StateCancelled, true},
		{StateSubmitted, StateRejected, true},
		{StateSubmitted, StateCreated, false},
		{StatePartiallyExecuted, StatePartiallyExecuted, true},
		{StatePartiallyExecuted, StateExecuted, true},
		{StatePartiallyExecuted, StateCancelled, true},
		{StatePartiallyExecuted, StateRejected, false},
		{StateExecuted, StateCancelled, false},
		{StateCancelled, StateSubmitted, false},
		{StateRejected, StateSubmitted, false},
	}
	for _, c := range cases {
		if got := validTransition(c.from, c.to); got != c.want {
			t.Errorf("validTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTickSentinel(t *testing.T) {
	var zero Tick
	if !zero.IsZero() {
		t.Error("zero-value Tick should report IsZero")
	}
	tick := Tick{Instrument: "TEST#A", Kind: KindBestOffer, Value: decimal.NewFromInt(100)}
	if tick.IsZero() {
		t.Error("populated tick should not report IsZero")
	}
}

func TestDataKindRoundTrip(t *testing.T) {
	kinds := []DataKind{
		KindPrice, KindOpenInterest, KindBestBid, KindBestOffer,
		KindDepth, KindTotalSupply, KindTotalDemand,
	}
	for _, k := range kinds {
		if got := ParseDataKind(k.String()); got != k {
			t.Errorf("ParseDataKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if got := ParseDataKind("bogus"); got != KindUnknown {
		t.Errorf("ParseDataKind(bogus) = %v, want KindUnknown", got)
	}
}
