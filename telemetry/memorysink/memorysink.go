// Package memorysink provides a bounded in-memory telemetry.Sink backed by
// github.com/hashicorp/golang-lru/v2. When full, the oldest event is evicted.
package memorysink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/nextedit-go/telemetry"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Sink implements telemetry.Sink in memory.
type Sink struct {
	mu    sync.Mutex
	seq   uint64
	cache *lru.Cache[uint64, telemetry.Event]
}

// New creates a sink retaining at most maxEvents events.
func New(maxEvents int) (*Sink, error) {
	cache, err := lru.New[uint64, telemetry.Event](maxEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Sink{cache: cache}, nil
}

func (s *Sink) SendTelemetryEvent(name string, properties map[string]string, measurements map[string]float64) {
	ev := telemetry.Event{
		Name:         name,
		Properties:   make(map[string]string, len(properties)),
		Measurements: make(map[string]float64, len(measurements)),
		Time:         time.Now(),
	}
	for k, v := range properties {
		ev.Properties[k] = v
	}
	for k, v := range measurements {
		ev.Measurements[k] = v
	}

	s.mu.Lock()
	s.seq++
	s.cache.Add(s.seq, ev)
	s.mu.Unlock()
}

// Events returns retained events in send order.
func (s *Sink) Events(ctx context.Context, limit int) ([]telemetry.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keys are returned oldest to newest; sequence numbers are only ever
	// added, never re-touched, so recency order equals send order.
	keys := s.cache.Keys()
	if limit > 0 && len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}
	out := make([]telemetry.Event, 0, len(keys))
	for _, k := range keys {
		if ev, ok := s.cache.Peek(k); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Len reports how many events are retained.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

func (s *Sink) Close() error {
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}

var _ telemetry.Sink = (*Sink)(nil)
