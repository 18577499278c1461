package suggestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/nextedit-go/internal/logctx"
	"github.com/ggoodman/nextedit-go/internal/metrics"
	"github.com/ggoodman/nextedit-go/telemetry"
	"github.com/ggoodman/nextedit-go/workspace"
	"github.com/google/uuid"
)

const (
	stateActive int32 = iota
	stateFinalized
)

// Suggestion is the handle for one computed suggestion. Fields are read only
// for callers; lifecycle transitions go through the Provider.
type Suggestion struct {
	// Edit is nil when the engine had nothing to suggest.
	Edit          *Edit
	CorrelationID string
	DocumentID    workspace.DocumentID
	Result        Result

	builder *telemetry.Builder
	state   atomic.Int32
}

// Finalized reports whether a terminal call was made for s.
func (s *Suggestion) Finalized() bool { return s.state.Load() == stateFinalized }

// Option configures NewProvider.
type Option func(*Provider)

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithNewID overrides correlation id generation.
func WithNewID(fn func() string) Option {
	return func(p *Provider) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// Provider drives suggestions through their lifecycle and guarantees each
// one's telemetry is sent exactly once.
type Provider struct {
	engine   EditEngine
	ws       workspace.View
	reporter *telemetry.Reporter
	log      *slog.Logger
	metrics  *metrics.Collector
	newID    func() string

	closeOnce sync.Once
	closeErr  error
}

func NewProvider(engine EditEngine, ws workspace.View, reporter *telemetry.Reporter, opts ...Option) *Provider {
	p := &Provider{
		engine:   engine,
		ws:       ws,
		reporter: reporter,
		log:      slog.New(slog.DiscardHandler),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.reporter == nil {
		p.reporter = telemetry.NewReporter(nil)
	}
	return p
}

// Close releases the engine when it implements io.Closer. Outstanding
// suggestions can still be finalized and their telemetry is still sent.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		if c, ok := p.engine.(io.Closer); ok {
			p.closeErr = c.Close()
		}
	})
	return p.closeErr
}

// ID returns the underlying engine's id.
func (p *Provider) ID() string { return p.engine.ID() }

// GetNextEdit asks the engine for a suggestion in docID. If anything fails
// after the telemetry builder was created, including a panic in the engine,
// the builder is sent and released before the failure propagates.
func (p *Provider) GetNextEdit(ctx context.Context, docID workspace.DocumentID) (_ *Suggestion, err error) {
	providerID := p.engine.ID()
	p.metrics.SuggestionRequested(providerID)

	doc, ok := p.ws.Document(docID)
	if !ok {
		p.metrics.SuggestionOutcome(providerID, "not_found")
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}

	correlationID := p.newID()
	ctx = logctx.WithSuggestionData(ctx, &logctx.SuggestionData{
		CorrelationID: correlationID,
		DocumentID:    string(docID),
		ProviderID:    providerID,
	})

	b := telemetry.NewBuilder(providerID, telemetry.Document{
		URI:        doc.URI(),
		LanguageID: doc.LanguageID,
		Version:    doc.Version,
	})
	b.SetOpportunityID(correlationID)

	start := time.Now()
	succeeded := false
	defer func() {
		if succeeded {
			return
		}
		// Reached on error and while unwinding a panic.
		outcome := "failed"
		if err != nil {
			b.SetError(err)
		}
		if _, ok := err.(*CancelledError); ok {
			outcome = "cancelled"
		}
		b.SetStatus(outcome)
		p.metrics.SuggestionOutcome(providerID, outcome)
		p.metrics.SuggestionLatency(providerID, outcome, time.Since(start))
		p.release(ctx, b)
	}()

	req := Request{Document: doc, CorrelationID: correlationID, IssuedAt: start}
	res, err := p.engine.GetNextEdit(ctx, docID, req, b.Hook())
	b.MarkResponded()
	if cerr := ctx.Err(); cerr != nil {
		p.log.DebugContext(ctx, "suggestion.get.cancelled")
		return nil, &CancelledError{Cause: cerr, Err: err}
	}
	if err != nil {
		p.log.WarnContext(ctx, "suggestion.get.fail", slog.String("err", err.Error()))
		return nil, err
	}

	s := &Suggestion{
		Edit:          res.Edit,
		CorrelationID: correlationID,
		DocumentID:    docID,
		Result:        res,
		builder:       b,
	}
	if res.Edit != nil {
		b.SetEdit(len([]rune(res.Edit.NewText)), res.Edit.Range.Len())
	} else if res.Status != "" {
		b.SetStatus(res.Status)
	} else {
		b.SetStatus("noEdit")
	}
	p.metrics.SuggestionLatency(providerID, "ok", time.Since(start))
	p.log.DebugContext(ctx, "suggestion.get.ok", slog.Bool("has_edit", res.Edit != nil))
	succeeded = true
	return s, nil
}

// HandleShown records that s was displayed. It may be called any number of
// times before the terminal call.
func (p *Provider) HandleShown(s *Suggestion) error {
	if s == nil {
		return ErrNilSuggestion
	}
	if s.Finalized() {
		p.log.Warn("suggestion.shown.finalized", slog.String("correlation_id", s.CorrelationID))
		return ErrAlreadyFinalized
	}
	s.builder.SetAsShown()
	p.metrics.SuggestionShown(p.engine.ID())
	p.engine.HandleShown(s.Result)
	return nil
}

func (p *Provider) HandleAccepted(s *Suggestion) error {
	return p.finalize(s, telemetry.Accepted, "accepted", func() {
		p.engine.HandleAcceptance(s.DocumentID, s.Result)
	})
}

func (p *Provider) HandleRejected(s *Suggestion) error {
	return p.finalize(s, telemetry.Rejected, "rejected", func() {
		p.engine.HandleRejection(s.DocumentID, s.Result)
	})
}

// HandleIgnored records that s was dropped, optionally because supersededBy
// replaced it.
func (p *Provider) HandleIgnored(s, supersededBy *Suggestion) error {
	return p.finalize(s, telemetry.NotAccepted, "ignored", func() {
		var superseding *Result
		if supersededBy != nil {
			s.builder.SetSupersededBy(supersededBy.CorrelationID)
			superseding = &supersededBy.Result
		}
		p.engine.HandleIgnored(s.DocumentID, s.Result, superseding)
	})
}

// finalize is the single terminal exit point. The state transition makes a
// second terminal call a logged no-op; the deferred release runs even when
// forward panics.
func (p *Provider) finalize(s *Suggestion, acceptance telemetry.Acceptance, status string, forward func()) error {
	if s == nil {
		return ErrNilSuggestion
	}
	if !s.state.CompareAndSwap(stateActive, stateFinalized) {
		p.log.Warn("suggestion.finalize.duplicate",
			slog.String("correlation_id", s.CorrelationID),
			slog.String("status", status),
		)
		return ErrAlreadyFinalized
	}

	ctx := logctx.WithSuggestionData(context.Background(), &logctx.SuggestionData{
		CorrelationID: s.CorrelationID,
		DocumentID:    string(s.DocumentID),
		ProviderID:    p.engine.ID(),
	})
	defer p.release(ctx, s.builder)

	s.builder.SetAcceptance(acceptance)
	s.builder.SetStatus(status)
	p.metrics.SuggestionOutcome(p.engine.ID(), status)
	forward()
	return nil
}

// release sends and disposes b.
func (p *Provider) release(ctx context.Context, b *telemetry.Builder) {
	defer b.Dispose()
	if err := p.reporter.SendForBuilder(b); err != nil {
		p.log.WarnContext(ctx, "suggestion.telemetry.fail", slog.String("err", err.Error()))
	}
}
