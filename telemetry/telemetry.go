// Package telemetry accumulates the facts about one suggestion in a Builder
// and sends them as a single event through a host supplied Sender.
//
// The Reporter enforces that a builder is sent at most once. Backends that
// persist events for inspection live in the memorysink and redissink
// subpackages; sinktest holds the conformance suite both must pass.
package telemetry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// EventName is the name of the event emitted for every finished suggestion.
const EventName = "provideInlineEdit"

var (
	// ErrAlreadySent is returned when a builder is handed to the reporter
	// after it was already sent.
	ErrAlreadySent = errors.New("telemetry already sent for builder")
	// ErrDisposed is returned when a released builder is used.
	ErrDisposed = errors.New("telemetry builder disposed")
)

// Sender is the host's telemetry sink. Implementations must be safe for
// concurrent use and must not retain the maps after returning.
type Sender interface {
	SendTelemetryEvent(name string, properties map[string]string, measurements map[string]float64)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(name string, properties map[string]string, measurements map[string]float64)

func (f SenderFunc) SendTelemetryEvent(name string, properties map[string]string, measurements map[string]float64) {
	f(name, properties, measurements)
}

// Event is one sent telemetry event as recorded by a Sink.
type Event struct {
	Name         string             `json:"name"`
	Properties   map[string]string  `json:"properties,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
	Time         time.Time          `json:"time"`
}

// Sink is a Sender that also retains what it was sent.
type Sink interface {
	Sender

	// Events returns up to limit of the most recently sent events, oldest
	// first. A limit <= 0 returns everything retained.
	Events(ctx context.Context, limit int) ([]Event, error)

	// Close releases the sink's resources.
	Close() error
}

// UnwrappingSender forwards events with a leading "prefix/" segment removed
// from the event name.
type UnwrappingSender struct {
	Sender Sender
}

func (u UnwrappingSender) SendTelemetryEvent(name string, properties map[string]string, measurements map[string]float64) {
	u.Sender.SendTelemetryEvent(UnwrapEventName(name), properties, measurements)
}

// UnwrapEventName strips the first path segment of name, if any.
func UnwrapEventName(name string) string {
	if i := strings.IndexByte(name, '/'); i > 0 {
		return name[i+1:]
	}
	return name
}

func cloneProps(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneMeasurements(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Recorder is a Sender that keeps events in memory, mostly for tests. It
// holds at most capacity undrained events; events past that are not stored
// but counted, and Dropped reports how many.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	dropped  int
}

// NewRecorder returns a Recorder holding up to capacity events.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 64
	}
	return &Recorder{capacity: capacity}
}

func (r *Recorder) SendTelemetryEvent(name string, properties map[string]string, measurements map[string]float64) {
	ev := Event{Name: name, Properties: cloneProps(properties), Measurements: cloneMeasurements(measurements), Time: time.Now()}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) >= r.capacity {
		r.dropped++
		return
	}
	r.events = append(r.events, ev)
}

// Drain returns and removes every held event, oldest first.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Dropped returns the number of events discarded because the recorder was
// full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

var (
	_ Sender = SenderFunc(nil)
	_ Sender = UnwrappingSender{}
	_ Sender = (*Recorder)(nil)
)
