package broker

import (
	"testing"

	"vulcan/internal/domain"
	"vulcan/internal/quote"
)

func newGuardFixture(t *testing.T, maxQty int64, maxNotional int64) (*RiskGuard, *quote.Cache, *recordingReactor) {
	t.Helper()
	cache := quote.NewCache()
	paper := NewPaperBroker(dec(100000000), cache, testLogger())
	guard := NewRiskGuard(paper, maxQty, dec(maxNotional), testLogger())
	reactor := &recordingReactor{}
	guard.RegisterReactor(reactor)
	return guard, cache, reactor
}

func TestRiskGuardPassesCompliantOrders(t *testing.T) {
	guard, cache, reactor := newGuardFixture(t, 100, 0)
	postQuote(cache, "TEST#A", domain.KindBestOffer, 10)

	order := domain.NewMarketOrder("demo", "TEST#A", domain.Buy, 50)
	guard.SubmitOrder(order)

	if got := order.State(); got != domain.StateExecuted {
		t.Errorf("state = %s, want executed", got)
	}
	orders, trades := reactor.counts()
	if orders != 1 || trades != 1 {
		t.Errorf("notifications = %d / %d, want 1 / 1", orders, trades)
	}
}

func TestRiskGuardRejectsOversizedQuantity(t *testing.T) {
	guard, cache, reactor := newGuardFixture(t, 100, 0)
	postQuote(cache, "TEST#A", domain.KindBestOffer, 10)

	order := domain.NewMarketOrder("demo", "TEST#A", domain.Buy, 101)
	guard.SubmitOrder(order)

	if got := order.State(); got != domain.StateRejected {
		t.Fatalf("state = %s, want rejected", got)
	}
	if _, ok := guard.Order(order.LocalID); ok {
		t.Error("rejected order must not reach the inner broker")
	}
	orders, trades := reactor.counts()
	if orders != 1 || trades != 0 {
		t.Errorf("notifications = %d / %d, want 1 / 0", orders, trades)
	}
}

func TestRiskGuardRejectsOversizedNotional(t *testing.T) {
	guard, _, _ := newGuardFixture(t, 0, 1000)

	order := domain.NewLimitOrder("demo", "TEST#A", domain.Buy, dec(50), 21)
	guard.SubmitOrder(order)

	if got := order.State(); got != domain.StateRejected {
		t.Errorf("state = %s, want rejected (notional 1050 > 1000)", got)
	}
}

func TestRiskGuardZeroLimitsDisabled(t *testing.T) {
	guard, cache, _ := newGuardFixture(t, 0, 0)
	postQuote(cache, "TEST#A", domain.KindBestOffer, 10)

	order := domain.NewMarketOrder("demo", "TEST#A", domain.Buy, 1000000)
	guard.SubmitOrder(order)

	if got := order.State(); got != domain.StateExecuted {
		t.Errorf("state = %s, want executed when limits are off", got)
	}
}

func TestRiskGuardMarketOrdersExemptFromNotional(t *testing.T) {
	guard, cache, _ := newGuardFixture(t, 0, 100)
	postQuote(cache, "TEST#A", domain.KindBestOffer, 10)

	// Notional would be 500 at the current offer, but market orders carry
	// no price for the pre-trade check.
	order := domain.NewMarketOrder("demo", "TEST#A", domain.Buy, 50)
	guard.SubmitOrder(order)

	if got := order.State(); got != domain.StateExecuted {
		t.Errorf("state = %s, want executed", got)
	}
}
