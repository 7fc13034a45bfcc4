package vulcan

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"vulcan/internal/broker"
	"vulcan/internal/domain"
	"vulcan/internal/journal"
	"vulcan/internal/quote"
	"vulcan/internal/server"
)

func newTestServer(t *testing.T) (*Client, *quote.Cache) {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	cache := quote.NewCache()
	paper := broker.NewPaperBroker(decimal.NewFromInt(100000000), cache, log)
	router := broker.NewRouter(log)
	router.AddBroker(paper)

	j, err := journal.NewJournal(filepath.Join(t.TempDir(), "journal.db"), log)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	router.RegisterReactor(j)

	srv := server.NewServer(router, cache, j, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL), cache
}

func TestClientOrderRoundTrip(t *testing.T) {
	client, cache := newTestServer(t)
	ctx := context.Background()

	cache.UpdateQuote("TEST#A", domain.Tick{
		Instrument: "TEST#A",
		Kind:       domain.KindBestOffer,
		Value:      decimal.NewFromInt(100),
		Timestamp:  1700000000,
	})

	snap, err := client.SubmitMarketOrder(ctx, "demo", "TEST#A", "buy", 10)
	if err != nil {
		t.Fatalf("SubmitMarketOrder: %v", err)
	}
	if snap.State != "executed" {
		t.Errorf("state = %q, want executed", snap.State)
	}

	got, err := client.GetOrder(ctx, snap.LocalID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.LocalID != snap.LocalID || got.ExecutedQuantity != 10 {
		t.Errorf("order = %+v, want executed 10", got)
	}

	positions, err := client.GetPositions(ctx)
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 1 || positions[0].Quantity != 10 {
		t.Errorf("positions = %+v, want [{TEST#A 10}]", positions)
	}

	trades, err := client.GetTrades(ctx, "TEST#A")
	if err != nil {
		t.Fatalf("GetTrades: %v", err)
	}
	if len(trades) != 1 || !trades[0].Volume.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("trades = %+v, want one trade of volume 1000", trades)
	}
}

func TestClientLimitOrderAndQuote(t *testing.T) {
	client, cache := newTestServer(t)
	ctx := context.Background()

	snap, err := client.SubmitLimitOrder(ctx, "demo", "TEST#A", "buy", decimal.NewFromInt(50), 1)
	if err != nil {
		t.Fatalf("SubmitLimitOrder: %v", err)
	}
	if snap.State != "submitted" {
		t.Errorf("state = %q, want submitted", snap.State)
	}

	if err := client.CancelOrder(ctx, snap.LocalID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	cache.UpdateQuote("TEST#A", domain.Tick{
		Instrument: "TEST#A",
		Kind:       domain.KindBestBid,
		Value:      decimal.NewFromInt(42),
		Timestamp:  1700000000,
	})
	q, err := client.GetQuote(ctx, "TEST#A", "best_bid")
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if !q.Value.Equal(decimal.NewFromInt(42)) {
		t.Errorf("quote value = %s, want 42", q.Value)
	}

	if _, err := client.GetQuote(ctx, "TEST#A", "best_offer"); err == nil {
		t.Error("GetQuote for missing kind should fail")
	}
}

func TestClientAccounts(t *testing.T) {
	client, _ := newTestServer(t)

	accounts, err := client.GetAccounts(context.Background())
	if err != nil {
		t.Fatalf("GetAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != "demo" {
		t.Errorf("accounts = %v, want [demo]", accounts)
	}
}
