// Package recorder persists tick streams to Parquet files on disk, organized
// by instrument and trading day, and reads them back for replay.
package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
)

// TickRecord is the Parquet schema for tick data. The value is stored as a
// decimal string so replayed ticks compare equal to the originals.
type TickRecord struct {
	Instrument string `parquet:"instrument"`
	Kind       string `parquet:"kind"`
	Value      string `parquet:"value"`
	Volume     int64  `parquet:"volume"`
	Timestamp  int64  `parquet:"timestamp"`
	Useconds   int32  `parquet:"useconds"`
}

// Recorder buffers ticks in memory and flushes them to Parquet files at:
//
//	<DataDir>/ticks/<INSTRUMENT>/<YYYY-MM-DD>.parquet
//
// Record is safe to call from the feed goroutine while Flush runs elsewhere.
type Recorder struct {
	DataDir string

	mu  sync.Mutex
	buf []domain.Tick

	log *slog.Logger
}

// NewRecorder creates a recorder rooted at the given data directory.
func NewRecorder(dataDir string, log *slog.Logger) *Recorder {
	return &Recorder{DataDir: dataDir, log: log.With("component", "recorder")}
}

// Record buffers one tick for the next flush.
func (r *Recorder) Record(tick domain.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, tick)
}

// Flush writes all buffered ticks to disk, merging with existing day files.
// The buffer is drained even when some groups fail; the first error is
// returned after all groups were attempted.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	ticks := r.buf
	r.buf = nil
	r.mu.Unlock()

	if len(ticks) == 0 {
		return nil
	}
	return r.writeTicks(ticks)
}

// WriteTicks persists a batch of ticks immediately, bypassing the buffer.
func (r *Recorder) WriteTicks(ticks []domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	return r.writeTicks(ticks)
}

func (r *Recorder) writeTicks(ticks []domain.Tick) error {
	type key struct {
		instrument string
		date       string
	}
	groups := make(map[key][]TickRecord)
	for _, t := range ticks {
		k := key{instrument: t.Instrument, date: t.Time().UTC().Format("2006-01-02")}
		groups[k] = append(groups[k], TickRecord{
			Instrument: t.Instrument,
			Kind:       t.Kind.String(),
			Value:      t.Value.String(),
			Volume:     t.Volume,
			Timestamp:  t.Timestamp,
			Useconds:   int32(t.Useconds),
		})
	}

	var firstErr error
	for k, records := range groups {
		path := r.tickPath(k.instrument, k.date)

		existing, _ := readParquetFile[TickRecord](path)
		merged := mergeTickRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			r.log.Error("writing ticks", "instrument", k.instrument, "date", k.date, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("writing ticks for %s/%s: %w", k.instrument, k.date, err)
			}
		}
	}
	return firstErr
}

// ReadTicks reads all ticks for the instrument within [start, end], in
// timestamp order. Days without a file are skipped.
func (r *Recorder) ReadTicks(instrument string, start, end time.Time) ([]domain.Tick, error) {
	var ticks []domain.Tick
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		path := r.tickPath(instrument, d.Format("2006-01-02"))
		records, err := readParquetFile[TickRecord](path)
		if err != nil {
			continue
		}
		for _, rec := range records {
			ts := time.Unix(rec.Timestamp, int64(rec.Useconds)*1000).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			value, err := decimal.NewFromString(rec.Value)
			if err != nil {
				return nil, fmt.Errorf("parsing tick value %q: %w", rec.Value, err)
			}
			ticks = append(ticks, domain.Tick{
				Instrument: rec.Instrument,
				Kind:       domain.ParseDataKind(rec.Kind),
				Value:      value,
				Volume:     rec.Volume,
				Timestamp:  rec.Timestamp,
				Useconds:   uint32(rec.Useconds),
			})
		}
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		if ticks[i].Timestamp != ticks[j].Timestamp {
			return ticks[i].Timestamp < ticks[j].Timestamp
		}
		return ticks[i].Useconds < ticks[j].Useconds
	})
	return ticks, nil
}

// ListInstruments returns all instruments with recorded ticks, sorted.
func (r *Recorder) ListInstruments() ([]string, error) {
	dir := filepath.Join(r.DataDir, "ticks")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var instruments []string
	for _, e := range entries {
		if e.IsDir() {
			instruments = append(instruments, e.Name())
		}
	}
	sort.Strings(instruments)
	return instruments, nil
}

// tickPath returns the file path for one instrument and trading day.
func (r *Recorder) tickPath(instrument, date string) string {
	return filepath.Join(r.DataDir, "ticks", instrument, date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeTickRecords appends incoming records to existing ones and sorts by
// timestamp. Ticks carry no natural identity, so duplicates are kept; a tick
// repeated on the wire was repeated in the market.
func mergeTickRecords(existing, incoming []TickRecord) []TickRecord {
	merged := make([]TickRecord, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].Useconds < merged[j].Useconds
	})
	return merged
}
