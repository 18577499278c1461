package telemetry

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Acceptance records how the user reacted to a suggestion.
type Acceptance string

const (
	Accepted    Acceptance = "accepted"
	Rejected    Acceptance = "rejected"
	NotAccepted Acceptance = "notAccepted"
)

// Document describes the document a suggestion was requested for.
type Document struct {
	URI        string
	LanguageID string
	Version    int
}

// Hook is the narrow view of a Builder handed to an edit engine so it can
// attach its own facts to the suggestion's event.
type Hook interface {
	SetProperty(key, value string)
	SetMeasurement(key string, value float64)
}

// BuilderOption configures NewBuilder.
type BuilderOption func(*Builder)

// WithClock overrides the time source used for request duration.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// Builder accumulates the facts about one suggestion. It is safe for
// concurrent use; every setter is a no-op once the builder is disposed.
type Builder struct {
	mu sync.Mutex

	providerID    string
	opportunityID string
	doc           Document

	shown        bool
	acceptance   Acceptance
	status       string
	supersededBy string

	hasEdit        bool
	newTextLength  int
	replacedLength int
	errMessage     string

	started  time.Time
	duration time.Duration

	props        map[string]string
	measurements map[string]float64

	now      func() time.Time
	sent     atomic.Bool
	disposed atomic.Bool
}

// NewBuilder starts a builder for a request made now.
func NewBuilder(providerID string, doc Document, opts ...BuilderOption) *Builder {
	b := &Builder{
		providerID:   providerID,
		doc:          doc,
		acceptance:   NotAccepted,
		status:       "notAccepted",
		props:        map[string]string{},
		measurements: map[string]float64{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.started = b.now()
	return b
}

func (b *Builder) update(fn func()) {
	if b.disposed.Load() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

func (b *Builder) SetOpportunityID(id string) { b.update(func() { b.opportunityID = id }) }

func (b *Builder) OpportunityID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opportunityID
}

func (b *Builder) SetAsShown() { b.update(func() { b.shown = true }) }

func (b *Builder) SetAcceptance(a Acceptance) { b.update(func() { b.acceptance = a }) }

func (b *Builder) SetStatus(status string) { b.update(func() { b.status = status }) }

func (b *Builder) SetSupersededBy(correlationID string) {
	b.update(func() { b.supersededBy = correlationID })
}

// SetEdit records the shape of the produced edit.
func (b *Builder) SetEdit(newTextLength, replacedLength int) {
	b.update(func() {
		b.hasEdit = true
		b.newTextLength = newTextLength
		b.replacedLength = replacedLength
	})
}

func (b *Builder) SetError(err error) {
	if err == nil {
		return
	}
	b.update(func() { b.errMessage = err.Error() })
}

// MarkResponded stops the request clock. Only the first call counts.
func (b *Builder) MarkResponded() {
	b.update(func() {
		if b.duration == 0 {
			b.duration = b.now().Sub(b.started)
		}
	})
}

// Hook returns the engine facing view of the builder.
func (b *Builder) Hook() Hook { return hook{b} }

// Dispose releases the builder. Later setters are ignored.
func (b *Builder) Dispose() {
	if b.disposed.Swap(true) {
		return
	}
	b.mu.Lock()
	b.props = nil
	b.measurements = nil
	b.mu.Unlock()
}

func (b *Builder) Disposed() bool { return b.disposed.Load() }

// Sent reports whether the builder was handed to a Reporter.
func (b *Builder) Sent() bool { return b.sent.Load() }

// build renders the event payload.
func (b *Builder) build() (map[string]string, map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	props := make(map[string]string, len(b.props)+10)
	for k, v := range b.props {
		props[k] = v
	}
	props["opportunityId"] = b.opportunityID
	props["providerId"] = b.providerID
	props["documentUri"] = b.doc.URI
	props["languageId"] = b.doc.LanguageID
	props["acceptance"] = string(b.acceptance)
	props["status"] = b.status
	props["wasShown"] = strconv.FormatBool(b.shown)
	props["hasEdit"] = strconv.FormatBool(b.hasEdit)
	if b.supersededBy != "" {
		props["supersededBy"] = b.supersededBy
	}
	if b.errMessage != "" {
		props["error"] = b.errMessage
	}

	ms := make(map[string]float64, len(b.measurements)+4)
	for k, v := range b.measurements {
		ms[k] = v
	}
	ms["documentVersion"] = float64(b.doc.Version)
	if b.hasEdit {
		ms["editNewTextLength"] = float64(b.newTextLength)
		ms["editReplacedLength"] = float64(b.replacedLength)
	}
	d := b.duration
	if d == 0 {
		d = b.now().Sub(b.started)
	}
	ms["requestDurationMs"] = float64(d.Milliseconds())
	return props, ms
}

type hook struct{ b *Builder }

func (h hook) SetProperty(key, value string) {
	h.b.update(func() {
		if h.b.props != nil {
			h.b.props[key] = value
		}
	})
}

func (h hook) SetMeasurement(key string, value float64) {
	h.b.update(func() {
		if h.b.measurements != nil {
			h.b.measurements[key] = value
		}
	})
}
