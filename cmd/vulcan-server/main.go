package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"vulcan/internal/broker"
	"vulcan/internal/config"
	"vulcan/internal/domain"
	"vulcan/internal/feed"
	"vulcan/internal/journal"
	"vulcan/internal/quote"
	"vulcan/internal/recorder"
	"vulcan/internal/server"
	"vulcan/internal/util"
)

func main() {
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
	router := broker.NewRouter(logger)

	if cfg.Broker.Paper {
		startCash := decimal.NewFromInt(100000000)
		if cfg.Broker.StartCash != "" {
			startCash, err = decimal.NewFromString(cfg.Broker.StartCash)
			if err != nil {
				log.Fatalf("invalid start_cash %q: %v", cfg.Broker.StartCash, err)
			}
		}
		router.AddBroker(broker.NewPaperBroker(startCash, table, logger))
	}

	if cfg.Broker.Live {
		live, err := broker.NewAlpacaBroker(ctx, cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, logger)
		if err != nil {
			log.Fatalf("connecting live broker: %v", err)
		}
		router.AddBroker(live)
		go func() {
			if err := live.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("live broker stream", "error", err)
			}
		}()
	}

	var execBroker broker.Broker = router
	if cfg.Broker.MaxOrderQuantity > 0 || cfg.Broker.MaxOrderNotional != "" {
		maxNotional := decimal.Zero
		if cfg.Broker.MaxOrderNotional != "" {
			maxNotional, err = decimal.NewFromString(cfg.Broker.MaxOrderNotional)
			if err != nil {
				log.Fatalf("invalid max_order_notional %q: %v", cfg.Broker.MaxOrderNotional, err)
			}
		}
		execBroker = broker.NewRiskGuard(router, cfg.Broker.MaxOrderQuantity, maxNotional, logger)
	}

	var j *journal.Journal
	if cfg.Storage.JournalPath != "" {
		j, err = journal.NewJournal(cfg.Storage.JournalPath, logger)
		if err != nil {
			log.Fatalf("opening journal: %v", err)
		}
		defer j.Close()
		execBroker.RegisterReactor(j)
	}

	fanout := feed.NewFanout()
	fanout.Subscribe(func(tick domain.Tick) {
		table.UpdateQuote(tick.Instrument, tick)
	})

	if cfg.Feed.Record && cfg.Storage.DataDir != "" {
		rec := recorder.NewRecorder(cfg.Storage.DataDir, logger)
		fanout.Subscribe(rec.Record)
		go flushLoop(ctx, rec, logger)
		defer rec.Flush()
	}

	startFeed(ctx, cfg, fanout, logger)

	srv := server.NewServer(execBroker, table, j, logger)
	go srv.Hub().Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("vulcan-server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
}

// startFeed launches the configured market-data source, if any.
func startFeed(ctx context.Context, cfg *config.Config, fanout *feed.Fanout, logger *slog.Logger) {
	switch cfg.Feed.Mode {
	case "generate":
		startPrice := decimal.NewFromInt(100)
		if cfg.Feed.StartPrice != "" {
			if p, err := decimal.NewFromString(cfg.Feed.StartPrice); err == nil {
				startPrice = p
			}
		}
		gen := feed.NewGenerator(fanout, cfg.Feed.Instruments, startPrice, cfg.Feed.Seed, logger)
		gen.Interval = time.Duration(cfg.Feed.IntervalMS) * time.Millisecond
		go func() {
			if err := gen.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("generator", "error", err)
			}
		}()
	case "replay":
		// Replay reads through a recorder rooted at the data dir even when
		// recording is off.
		rec := recorder.NewRecorder(cfg.Storage.DataDir, logger)
		rep := feed.NewReplayer(rec, fanout, logger)
		rep.Speed = cfg.Feed.Speed
		start, err := time.Parse("2006-01-02", cfg.Feed.ReplayStart)
		if err != nil {
			log.Fatalf("invalid replay_start %q: %v", cfg.Feed.ReplayStart, err)
		}
		end, err := time.Parse("2006-01-02", cfg.Feed.ReplayEnd)
		if err != nil {
			log.Fatalf("invalid replay_end %q: %v", cfg.Feed.ReplayEnd, err)
		}
		end = end.Add(24*time.Hour - time.Second)
		go func() {
			if err := rep.Run(ctx, cfg.Feed.Instruments, start, end); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("replayer", "error", err)
			}
		}()
	case "":
		// No feed; quotes arrive only if something else updates the cache.
	default:
		log.Fatalf("unknown feed mode %q", cfg.Feed.Mode)
	}
}

// flushLoop periodically flushes buffered ticks to Parquet.
func flushLoop(ctx context.Context, rec *recorder.Recorder, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rec.Flush(); err != nil {
				logger.Error("flushing recorder", "error", err)
			}
		}
	}
}
