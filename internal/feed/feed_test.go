package feed

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
	"vulcan/internal/recorder"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	f := NewFanout()
	var first, second []domain.Tick
	f.Subscribe(func(tick domain.Tick) { first = append(first, tick) })
	f.Subscribe(func(tick domain.Tick) { second = append(second, tick) })

	tick := domain.Tick{Instrument: "TEST#A", Kind: domain.KindPrice, Value: decimal.NewFromInt(5)}
	f.Publish(tick)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("deliveries = %d / %d, want 1 / 1", len(first), len(second))
	}
	if first[0].Instrument != "TEST#A" {
		t.Errorf("tick = %+v, want TEST#A", first[0])
	}
}

func TestReplayerOrdersAcrossInstruments(t *testing.T) {
	store := recorder.NewRecorder(t.TempDir(), testLogger())
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC).Unix()
	err := store.WriteTicks([]domain.Tick{
		{Instrument: "TEST#B", Kind: domain.KindPrice, Value: decimal.NewFromInt(2), Timestamp: base + 1},
		{Instrument: "TEST#A", Kind: domain.KindPrice, Value: decimal.NewFromInt(1), Timestamp: base},
		{Instrument: "TEST#A", Kind: domain.KindPrice, Value: decimal.NewFromInt(3), Timestamp: base + 2},
	})
	if err != nil {
		t.Fatalf("WriteTicks: %v", err)
	}

	fanout := NewFanout()
	var got []domain.Tick
	fanout.Subscribe(func(tick domain.Tick) { got = append(got, tick) })

	r := NewReplayer(store, fanout, testLogger())
	start := time.Unix(base, 0).UTC()
	if err := r.Run(context.Background(), []string{"TEST#A", "TEST#B"}, start, start.Add(time.Minute)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("ticks = %d, want 3", len(got))
	}
	for i, want := range []int64{1, 2, 3} {
		if !got[i].Value.Equal(decimal.NewFromInt(want)) {
			t.Errorf("tick %d value = %s, want %d (timestamp order)", i, got[i].Value, want)
		}
	}
}

func TestReplayerHonoursCancellation(t *testing.T) {
	store := recorder.NewRecorder(t.TempDir(), testLogger())
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC).Unix()
	err := store.WriteTicks([]domain.Tick{
		{Instrument: "TEST#A", Kind: domain.KindPrice, Value: decimal.NewFromInt(1), Timestamp: base},
		{Instrument: "TEST#A", Kind: domain.KindPrice, Value: decimal.NewFromInt(2), Timestamp: base + 3600},
	})
	if err != nil {
		t.Fatalf("WriteTicks: %v", err)
	}

	fanout := NewFanout()
	ctx, cancel := context.WithCancel(context.Background())
	var count int
	fanout.Subscribe(func(domain.Tick) {
		count++
		cancel()
	})

	r := NewReplayer(store, fanout, testLogger())
	r.Speed = 1 // the hour-long gap would otherwise stall the test
	start := time.Unix(base, 0).UTC()
	err = r.Run(ctx, []string{"TEST#A"}, start, start.Add(2*time.Hour))
	if err == nil {
		t.Fatal("Run should return the cancellation error")
	}
	if count != 1 {
		t.Errorf("published = %d, want 1 before cancellation", count)
	}
}

func TestGeneratorEmitsBookPerStep(t *testing.T) {
	fanout := NewFanout()
	var got []domain.Tick
	fanout.Subscribe(func(tick domain.Tick) { got = append(got, tick) })

	g := NewGenerator(fanout, []string{"TEST#A"}, decimal.NewFromInt(100), 1, testLogger())
	g.Steps = 5
	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(got) != 15 {
		t.Fatalf("ticks = %d, want 3 per step over 5 steps", len(got))
	}
	for i := 0; i < len(got); i += 3 {
		bid, offer, price := got[i], got[i+1], got[i+2]
		if bid.Kind != domain.KindBestBid || offer.Kind != domain.KindBestOffer || price.Kind != domain.KindPrice {
			t.Fatalf("step kinds = %s, %s, %s", bid.Kind, offer.Kind, price.Kind)
		}
		if !bid.Value.LessThan(offer.Value) {
			t.Errorf("bid %s not below offer %s", bid.Value, offer.Value)
		}
		if price.Value.LessThanOrEqual(decimal.Zero) {
			t.Errorf("price %s not positive", price.Value)
		}
		if price.Volume <= 0 {
			t.Errorf("price volume = %d, want positive", price.Volume)
		}
	}
}

func TestGeneratorReproducibleWithSeed(t *testing.T) {
	run := func() []decimal.Decimal {
		fanout := NewFanout()
		var values []decimal.Decimal
		fanout.Subscribe(func(tick domain.Tick) {
			if tick.Kind == domain.KindPrice {
				values = append(values, tick.Value)
			}
		})
		g := NewGenerator(fanout, []string{"TEST#A"}, decimal.NewFromInt(100), 42, testLogger())
		g.Steps = 10
		if err := g.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return values
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("step %d: %s vs %s, want identical walks for equal seeds", i, first[i], second[i])
		}
	}
}
