// Package sinktest holds the conformance suite every telemetry.Sink
// implementation is expected to pass.
package sinktest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/nextedit-go/telemetry"
)

// SinkFactory creates a new, empty Sink for one subtest.
type SinkFactory func(t *testing.T) telemetry.Sink

// RunSinkTests runs the complete Sink test suite against the provided factory.
func RunSinkTests(t *testing.T, factory SinkFactory) {
	t.Run("SendAndRead", func(t *testing.T) { testSendAndRead(t, factory) })
	t.Run("PreservesOrder", func(t *testing.T) { testPreservesOrder(t, factory) })
	t.Run("LimitReturnsNewest", func(t *testing.T) { testLimitReturnsNewest(t, factory) })
	t.Run("ConcurrentSends", func(t *testing.T) { testConcurrentSends(t, factory) })
	t.Run("ReporterSendsOnce", func(t *testing.T) { testReporterSendsOnce(t, factory) })
	t.Run("CallerMapsNotRetained", func(t *testing.T) { testCallerMapsNotRetained(t, factory) })
}

func newSink(t *testing.T, factory SinkFactory) telemetry.Sink {
	t.Helper()
	s := factory(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func testSendAndRead(t *testing.T, factory SinkFactory) {
	s := newSink(t, factory)
	s.SendTelemetryEvent("provideInlineEdit",
		map[string]string{"status": "accepted"},
		map[string]float64{"requestDurationMs": 12},
	)

	evs, err := s.Events(ctx(t), 0)
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	ev := evs[0]
	if ev.Name != "provideInlineEdit" {
		t.Fatalf("name = %q", ev.Name)
	}
	if ev.Properties["status"] != "accepted" {
		t.Fatalf("status = %q", ev.Properties["status"])
	}
	if ev.Measurements["requestDurationMs"] != 12 {
		t.Fatalf("requestDurationMs = %v", ev.Measurements["requestDurationMs"])
	}
	if ev.Time.IsZero() {
		t.Fatal("expected event time to be set")
	}
}

func testPreservesOrder(t *testing.T, factory SinkFactory) {
	s := newSink(t, factory)
	for i := 0; i < 5; i++ {
		s.SendTelemetryEvent(fmt.Sprintf("ev-%d", i), nil, nil)
	}
	evs, err := s.Events(ctx(t), 0)
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(evs) != 5 {
		t.Fatalf("expected 5 events, got %d", len(evs))
	}
	for i, ev := range evs {
		if want := fmt.Sprintf("ev-%d", i); ev.Name != want {
			t.Fatalf("event %d = %q, want %q", i, ev.Name, want)
		}
	}
}

func testLimitReturnsNewest(t *testing.T, factory SinkFactory) {
	s := newSink(t, factory)
	for i := 0; i < 4; i++ {
		s.SendTelemetryEvent(fmt.Sprintf("ev-%d", i), nil, nil)
	}
	evs, err := s.Events(ctx(t), 2)
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(evs) != 2 || evs[0].Name != "ev-2" || evs[1].Name != "ev-3" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func testConcurrentSends(t *testing.T, factory SinkFactory) {
	s := newSink(t, factory)
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SendTelemetryEvent("concurrent", map[string]string{"i": fmt.Sprint(i)}, nil)
		}(i)
	}
	wg.Wait()

	evs, err := s.Events(ctx(t), 0)
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(evs) != n {
		t.Fatalf("expected %d events, got %d", n, len(evs))
	}
	seen := map[string]bool{}
	for _, ev := range evs {
		seen[ev.Properties["i"]] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct events, got %d", n, len(seen))
	}
}

func testReporterSendsOnce(t *testing.T, factory SinkFactory) {
	s := newSink(t, factory)
	r := telemetry.NewReporter(s)
	b := telemetry.NewBuilder("provider", telemetry.Document{URI: "file:///a.go", LanguageID: "go", Version: 3})
	b.SetOpportunityID("opp-1")
	b.SetAcceptance(telemetry.Accepted)
	b.SetStatus("accepted")

	if err := r.SendForBuilder(b); err != nil {
		t.Fatalf("SendForBuilder() failed: %v", err)
	}
	if err := r.SendForBuilder(b); err != telemetry.ErrAlreadySent {
		t.Fatalf("expected ErrAlreadySent, got %v", err)
	}

	evs, err := s.Events(ctx(t), 0)
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(evs))
	}
	if evs[0].Name != telemetry.EventName || evs[0].Properties["opportunityId"] != "opp-1" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
	if evs[0].Measurements["documentVersion"] != 3 {
		t.Fatalf("documentVersion = %v", evs[0].Measurements["documentVersion"])
	}
}

func testCallerMapsNotRetained(t *testing.T, factory SinkFactory) {
	s := newSink(t, factory)
	props := map[string]string{"k": "before"}
	s.SendTelemetryEvent("ev", props, nil)
	props["k"] = "after"

	evs, err := s.Events(ctx(t), 0)
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(evs) != 1 || evs[0].Properties["k"] != "before" {
		t.Fatalf("sink retained caller map: %+v", evs)
	}
}
