// Command vulcan-trader runs the built-in SMA crossover strategy against the
// simulated engine, fed either by the synthetic generator or by replaying
// recorded ticks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"vulcan/internal/broker"
	"vulcan/internal/config"
	"vulcan/internal/domain"
	"vulcan/internal/feed"
	"vulcan/internal/quote"
	"vulcan/internal/recorder"
	"vulcan/internal/strategy"
	"vulcan/internal/strategy/builtins"
	"vulcan/internal/util"
)

func main() {
	instrument := flag.String("instrument", "TEST#A", "instrument to trade")
	short := flag.Int("short", 5, "short SMA period")
	long := flag.Int("long", 20, "long SMA period")
	quantity := flag.Int64("quantity", 10, "quantity per signal")
	mode := flag.String("mode", "generate", "feed source: generate or replay")
	replayStart := flag.String("start", "", "replay window start, 2006-01-02 (defaults to config)")
	replayEnd := flag.String("end", "", "replay window end, 2006-01-02 (defaults to config)")
	flag.Parse()

	cfgPath := "config/vulcan.yaml"
	if p := os.Getenv("VULCAN_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	table := quote.NewCache()
	startCash := decimal.NewFromInt(100000000)
	if cfg.Broker.StartCash != "" {
		startCash, err = decimal.NewFromString(cfg.Broker.StartCash)
		if err != nil {
			log.Fatalf("invalid start_cash %q: %v", cfg.Broker.StartCash, err)
		}
	}
	paper := broker.NewPaperBroker(startCash, table, logger)

	sma := builtins.NewSMACross(*instrument, *short, *long, *quantity)
	runner := strategy.NewRunner(sma, paper, "demo", logger)
	paper.RegisterReactor(runner)

	fanout := feed.NewFanout()
	fanout.Subscribe(func(tick domain.Tick) {
		table.UpdateQuote(tick.Instrument, tick)
	})
	fanout.Subscribe(runner.OnTick)

	switch *mode {
	case "generate":
		startPrice := decimal.NewFromInt(100)
		if cfg.Feed.StartPrice != "" {
			if p, err := decimal.NewFromString(cfg.Feed.StartPrice); err == nil {
				startPrice = p
			}
		}
		gen := feed.NewGenerator(fanout, []string{*instrument}, startPrice, cfg.Feed.Seed, logger)
		gen.Interval = time.Duration(cfg.Feed.IntervalMS) * time.Millisecond
		go func() {
			if err := gen.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("generator", "error", err)
			}
		}()
	case "replay":
		start, end := replayWindow(cfg, *replayStart, *replayEnd)
		rec := recorder.NewRecorder(cfg.Storage.DataDir, logger)
		rep := feed.NewReplayer(rec, fanout, logger)
		go func() {
			if err := rep.Run(ctx, []string{*instrument}, start, end); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("replayer", "error", err)
			}
			// Let the runner drain queued ticks before shutting it down.
			time.Sleep(time.Second)
			cancel()
		}()
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	logger.Info("vulcan-trader running", "mode", *mode, "instrument", *instrument, "short", *short, "long", *long)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runner: %v", err)
	}

	fmt.Printf("final cash: %s\n", paper.Cash())
	for _, p := range paper.Positions() {
		fmt.Printf("position: %s %d\n", p.Instrument, p.Quantity)
	}
}

// replayWindow resolves the replay date range from flags, falling back to the
// config file.
func replayWindow(cfg *config.Config, startFlag, endFlag string) (time.Time, time.Time) {
	startStr := startFlag
	if startStr == "" {
		startStr = cfg.Feed.ReplayStart
	}
	endStr := endFlag
	if endStr == "" {
		endStr = cfg.Feed.ReplayEnd
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		log.Fatalf("invalid replay start %q: %v", startStr, err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		log.Fatalf("invalid replay end %q: %v", endStr, err)
	}
	return start, end.Add(24*time.Hour - time.Second)
}
