// Package feed produces tick streams and fans them out to consumers. Sources
// are a Parquet replayer for recorded data and a synthetic random-walk
// generator; consumers are anything taking ticks, typically the quote cache
// and the recorder.
package feed

import (
	"sync"

	"vulcan/internal/domain"
)

// Sink consumes ticks from a feed.
type Sink func(tick domain.Tick)

// Fanout distributes each published tick to every subscribed sink, in
// subscription order, on the publisher's goroutine.
type Fanout struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewFanout creates an empty fanout.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Subscribe adds a sink. Sinks cannot be removed; a consumer that goes away
// should ignore ticks instead.
func (f *Fanout) Subscribe(sink Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

// Publish delivers the tick to every sink.
func (f *Fanout) Publish(tick domain.Tick) {
	f.mu.Lock()
	sinks := append([]Sink(nil), f.sinks...)
	f.mu.Unlock()

	for _, sink := range sinks {
		sink(tick)
	}
}
