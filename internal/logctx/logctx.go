package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with groups describing the suggestion and API
// call carried by the context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if sd, ok := ctx.Value(suggestionDataKey{}).(*SuggestionData); ok {
		r.AddAttrs(slog.Group("suggestion",
			slog.String("id", sd.CorrelationID),
			slog.String("doc", sd.DocumentID),
			slog.String("provider", sd.ProviderID),
		))
	}

	if ad, ok := ctx.Value(apiCallDataKey{}).(*APICallData); ok {
		r.AddAttrs(slog.Group("api",
			slog.String("method", ad.Method),
			slog.String("route", ad.Route),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

// Wrap returns h decorated with context groups. Wrapping an already wrapped
// handler is a no-op.
func Wrap(h slog.Handler) slog.Handler {
	if h == nil {
		return slog.DiscardHandler
	}
	if _, ok := h.(Handler); ok {
		return h
	}
	return Handler{Handler: h}
}

type suggestionDataKey struct{}

type SuggestionData struct {
	CorrelationID string
	DocumentID    string
	ProviderID    string
}

func WithSuggestionData(ctx context.Context, data *SuggestionData) context.Context {
	return context.WithValue(ctx, suggestionDataKey{}, data)
}

type apiCallDataKey struct{}

type APICallData struct {
	Method string
	Route  string
}

func WithAPICallData(ctx context.Context, data *APICallData) context.Context {
	return context.WithValue(ctx, apiCallDataKey{}, data)
}
