package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"vulcan/internal/domain"
	"vulcan/internal/recorder"
)

// Replayer publishes recorded ticks through a fanout, in timestamp order
// across instruments.
type Replayer struct {
	store  *recorder.Recorder
	fanout *Fanout

	// Speed scales replay pacing: 1 plays at recorded speed, 2 twice as
	// fast. Zero or negative publishes as fast as possible.
	Speed float64

	log *slog.Logger
}

// NewReplayer creates a replayer reading from store and publishing to fanout.
// The default speed is as-fast-as-possible.
func NewReplayer(store *recorder.Recorder, fanout *Fanout, log *slog.Logger) *Replayer {
	return &Replayer{store: store, fanout: fanout, log: log.With("component", "replayer")}
}

// Run replays all ticks for the given instruments within [start, end],
// merged into one timestamp-ordered stream. It returns when the stream is
// exhausted or ctx is cancelled.
func (r *Replayer) Run(ctx context.Context, instruments []string, start, end time.Time) error {
	var ticks []domain.Tick
	for _, instrument := range instruments {
		batch, err := r.store.ReadTicks(instrument, start, end)
		if err != nil {
			return fmt.Errorf("reading ticks for %s: %w", instrument, err)
		}
		ticks = append(ticks, batch...)
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		if ticks[i].Timestamp != ticks[j].Timestamp {
			return ticks[i].Timestamp < ticks[j].Timestamp
		}
		return ticks[i].Useconds < ticks[j].Useconds
	})
	r.log.Info("replay starting", "instruments", len(instruments), "ticks", len(ticks))

	var prev time.Time
	for _, tick := range ticks {
		if r.Speed > 0 && !prev.IsZero() {
			gap := tick.Time().Sub(prev)
			if gap > 0 {
				delay := time.Duration(float64(gap) / r.Speed)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.fanout.Publish(tick)
		prev = tick.Time()
	}
	r.log.Info("replay finished", "ticks", len(ticks))
	return nil
}
