package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
)

// Generator publishes a synthetic top-of-book stream for a set of
// instruments. Each instrument's mid price follows a random walk; every step
// emits a BestBid, a BestOffer, and a Price tick around the mid.
type Generator struct {
	fanout *Fanout
	rng    *rand.Rand

	// Interval is the wall-clock gap between steps. Zero means no pacing,
	// useful for backtests.
	Interval time.Duration

	// Steps limits the number of walk steps; zero runs until ctx cancels.
	Steps int

	mids   map[string]decimal.Decimal
	spread decimal.Decimal
	step   decimal.Decimal

	log *slog.Logger
}

// NewGenerator creates a generator walking each instrument from startPrice.
// A non-zero seed makes the walk reproducible.
func NewGenerator(fanout *Fanout, instruments []string, startPrice decimal.Decimal, seed int64, log *slog.Logger) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mids := make(map[string]decimal.Decimal, len(instruments))
	for _, instrument := range instruments {
		mids[instrument] = startPrice
	}
	return &Generator{
		fanout: fanout,
		rng:    rand.New(rand.NewSource(seed)),
		mids:   mids,
		spread: decimal.NewFromInt(1),
		step:   decimal.NewFromInt(1),
		log:    log.With("component", "generator"),
	}
}

// Run walks every instrument until Steps is exhausted or ctx cancels.
func (g *Generator) Run(ctx context.Context) error {
	instruments := make([]string, 0, len(g.mids))
	for instrument := range g.mids {
		instruments = append(instruments, instrument)
	}

	for step := 0; g.Steps == 0 || step < g.Steps; step++ {
		for _, instrument := range instruments {
			g.emit(instrument)
		}
		if g.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.Interval):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// emit advances one instrument's walk and publishes its book.
func (g *Generator) emit(instrument string) {
	mid := g.mids[instrument]
	if g.rng.Intn(2) == 0 {
		mid = mid.Add(g.step)
	} else {
		mid = mid.Sub(g.step)
	}
	// Walks stay positive; a price at or below the spread bounces back up.
	if mid.LessThanOrEqual(g.spread) {
		mid = g.spread.Add(g.step)
	}
	g.mids[instrument] = mid

	now := time.Now()
	half := g.spread.Div(decimal.NewFromInt(2))
	for _, t := range []domain.Tick{
		{Instrument: instrument, Kind: domain.KindBestBid, Value: mid.Sub(half)},
		{Instrument: instrument, Kind: domain.KindBestOffer, Value: mid.Add(half)},
		{Instrument: instrument, Kind: domain.KindPrice, Value: mid, Volume: int64(g.rng.Intn(100) + 1)},
	} {
		t.Timestamp = now.Unix()
		t.Useconds = uint32(now.Nanosecond() / 1000)
		g.fanout.Publish(t)
	}
}
