package journal

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecordsOrderLifecycle(t *testing.T) {
	j := newTestJournal(t)

	order := domain.NewLimitOrder("demo", "TEST#A", domain.Buy, decimal.NewFromInt(50), 10)
	if err := order.Submit(); err != nil {
		t.Fatal(err)
	}
	j.OrderCallback(order)
	if err := order.Fill(10); err != nil {
		t.Fatal(err)
	}
	j.OrderCallback(order)

	events, err := j.OrderEvents(context.Background(), order.LocalID)
	if err != nil {
		t.Fatalf("OrderEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].State != "submitted" || events[1].State != "executed" {
		t.Errorf("states = %s, %s; want submitted, executed", events[0].State, events[1].State)
	}
	if events[1].ExecutedQuantity != 10 {
		t.Errorf("executed = %d, want 10", events[1].ExecutedQuantity)
	}
	if !events[0].Price.Equal(decimal.NewFromInt(50)) {
		t.Errorf("price = %s, want 50", events[0].Price)
	}
}

func TestJournalRecordsTrades(t *testing.T) {
	j := newTestJournal(t)

	j.TradeCallback(domain.Trade{
		OrderID:    1,
		Account:    "demo",
		Instrument: "TEST#A",
		Operation:  domain.Buy,
		Price:      decimal.NewFromInt(100),
		Quantity:   10,
		Volume:     decimal.NewFromInt(1000),
		Currency:   "TEST",
		Timestamp:  1700000000,
	})
	j.TradeCallback(domain.Trade{
		OrderID:    2,
		Account:    "demo",
		Instrument: "TEST#B",
		Operation:  domain.Sell,
		Price:      decimal.NewFromInt(20),
		Quantity:   5,
		Volume:     decimal.NewFromInt(100),
		Currency:   "TEST",
		Timestamp:  1700000001,
	})

	all, err := j.Trades(context.Background(), "")
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("trades = %d, want 2", len(all))
	}

	only, err := j.Trades(context.Background(), "TEST#A")
	if err != nil {
		t.Fatalf("Trades filtered: %v", err)
	}
	if len(only) != 1 {
		t.Fatalf("filtered trades = %d, want 1", len(only))
	}
	trade := only[0]
	if trade.Operation != domain.Buy || !trade.Volume.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("trade = %+v, want buy with volume 1000", trade)
	}
}

func TestJournalEmptyQueries(t *testing.T) {
	j := newTestJournal(t)

	events, err := j.OrderEvents(context.Background(), 42)
	if err != nil {
		t.Fatalf("OrderEvents: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}

	trades, err := j.Trades(context.Background(), "TEST#A")
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("trades = %v, want none", trades)
	}
}
