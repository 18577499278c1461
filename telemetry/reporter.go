package telemetry

import (
	"log/slog"
)

// ReporterOption configures NewReporter.
type ReporterOption func(*Reporter)

func WithLogger(l *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		if l != nil {
			r.log = l
		}
	}
}

// Reporter turns builders into events on a Sender.
type Reporter struct {
	sender Sender
	log    *slog.Logger
}

func NewReporter(sender Sender, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		sender: sender,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// SendForBuilder sends b's event. A builder is sent at most once; later
// attempts are logged and return ErrAlreadySent without contacting the
// sender.
func (r *Reporter) SendForBuilder(b *Builder) error {
	if b.sent.Swap(true) {
		r.log.Warn("telemetry.send.duplicate", slog.String("opportunity_id", b.OpportunityID()))
		return ErrAlreadySent
	}
	if b.Disposed() {
		r.log.Warn("telemetry.send.disposed", slog.String("opportunity_id", b.OpportunityID()))
		return ErrDisposed
	}
	props, ms := b.build()
	if r.sender == nil {
		return nil
	}
	r.sender.SendTelemetryEvent(EventName, props, ms)
	r.log.Debug("telemetry.send.ok",
		slog.String("opportunity_id", props["opportunityId"]),
		slog.String("status", props["status"]),
	)
	return nil
}
