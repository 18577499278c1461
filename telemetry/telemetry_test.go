package telemetry

import (
	"errors"
	"testing"
	"time"
)

func TestBuilderEvent(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	b := NewBuilder("nes", Document{URI: "file:///a.ts", LanguageID: "typescript", Version: 2},
		WithClock(func() time.Time { return clock }))
	b.SetOpportunityID("opp")
	b.SetEdit(10, 2)
	b.Hook().SetProperty("engine", "remote")
	b.Hook().SetMeasurement("promptTokens", 42)
	clock = now.Add(150 * time.Millisecond)
	b.MarkResponded()
	clock = now.Add(time.Hour)
	b.SetAsShown()
	b.SetSupersededBy("other")

	props, ms := b.build()
	want := map[string]string{
		"opportunityId": "opp",
		"providerId":    "nes",
		"documentUri":   "file:///a.ts",
		"languageId":    "typescript",
		"acceptance":    "notAccepted",
		"wasShown":      "true",
		"hasEdit":       "true",
		"supersededBy":  "other",
		"engine":        "remote",
	}
	for k, v := range want {
		if props[k] != v {
			t.Fatalf("props[%q] = %q, want %q", k, props[k], v)
		}
	}
	if ms["requestDurationMs"] != 150 {
		t.Fatalf("requestDurationMs = %v", ms["requestDurationMs"])
	}
	if ms["promptTokens"] != 42 || ms["editNewTextLength"] != 10 || ms["editReplacedLength"] != 2 {
		t.Fatalf("unexpected measurements: %v", ms)
	}
}

func TestBuilderOmitsSupersededByWhenUnset(t *testing.T) {
	b := NewBuilder("nes", Document{})
	props, _ := b.build()
	if _, ok := props["supersededBy"]; ok {
		t.Fatal("supersededBy should be absent")
	}
	if _, ok := props["error"]; ok {
		t.Fatal("error should be absent")
	}
}

func TestDisposedBuilderIgnoresSetters(t *testing.T) {
	b := NewBuilder("nes", Document{})
	b.Dispose()
	b.Dispose()
	b.SetStatus("accepted")
	b.Hook().SetProperty("k", "v")
	if !b.Disposed() {
		t.Fatal("expected disposed")
	}
	r := NewReporter(SenderFunc(func(string, map[string]string, map[string]float64) {
		t.Fatal("disposed builder must not be sent")
	}))
	if err := r.SendForBuilder(b); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
}

func TestReporterSendsAtMostOnce(t *testing.T) {
	rec := NewRecorder(8)
	r := NewReporter(rec)
	b := NewBuilder("nes", Document{})
	b.SetError(errors.New("boom"))

	if err := r.SendForBuilder(b); err != nil {
		t.Fatalf("SendForBuilder() failed: %v", err)
	}
	if err := r.SendForBuilder(b); !errors.Is(err, ErrAlreadySent) {
		t.Fatalf("expected ErrAlreadySent, got %v", err)
	}
	evs := rec.Drain()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].Name != EventName || evs[0].Properties["error"] != "boom" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
	if !b.Sent() {
		t.Fatal("expected builder marked sent")
	}
}

func TestUnwrapEventName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"copilot-chat/provideInlineEdit", "provideInlineEdit"},
		{"provideInlineEdit", "provideInlineEdit"},
		{"a/b/c", "b/c"},
		{"/leading", "/leading"},
	}
	for _, tt := range tests {
		if got := UnwrapEventName(tt.in); got != tt.want {
			t.Fatalf("UnwrapEventName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	rec := NewRecorder(1)
	UnwrappingSender{Sender: rec}.SendTelemetryEvent("x/y", nil, nil)
	if evs := rec.Drain(); len(evs) != 1 || evs[0].Name != "y" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestRecorderCountsOverflow(t *testing.T) {
	rec := NewRecorder(2)
	for range 3 {
		rec.SendTelemetryEvent(EventName, nil, nil)
	}
	if rec.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", rec.Dropped())
	}
	if evs := rec.Drain(); len(evs) != 2 {
		t.Fatalf("expected 2 held events, got %d", len(evs))
	}
	rec.SendTelemetryEvent(EventName, nil, nil)
	if evs := rec.Drain(); len(evs) != 1 {
		t.Fatalf("expected room after Drain, got %d events", len(evs))
	}
}
