package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	nextedit "github.com/ggoodman/nextedit-go"
	"github.com/ggoodman/nextedit-go/auth"
	"github.com/ggoodman/nextedit-go/config"
	"github.com/ggoodman/nextedit-go/ghapi"
	"github.com/ggoodman/nextedit-go/telemetry"
	"github.com/ggoodman/nextedit-go/telemetry/memorysink"
	"github.com/ggoodman/nextedit-go/telemetry/redissink"
	"github.com/ggoodman/nextedit-go/validate"
	"gopkg.in/yaml.v3"
)

// tokens returns the configured bearer token supplier. JWT-shaped tokens
// are checked for expiry before use.
func (o *RootOptions) tokens() (auth.TokenProvider, error) {
	tok := strings.TrimSpace(o.cfg.Token)
	if strings.Count(tok, ".") == 2 {
		return auth.NewExpiringToken(tok)
	}
	return auth.Static(tok), nil
}

func (o *RootOptions) options() (nextedit.Options, error) {
	tokens, err := o.tokens()
	if err != nil {
		return nextedit.Options{}, err
	}
	return nextedit.Options{
		Fetcher:    o.fetcher,
		Tokens:     tokens,
		LogHandler: o.handler,
		Config:     o.cfg,
	}, nil
}

func (o *RootOptions) service() (*ghapi.Service, error) {
	opts, err := o.options()
	if err != nil {
		return nil, err
	}
	return nextedit.CreateAPIService(opts)
}

// sink opens the telemetry sink selected by the configuration.
func (o *RootOptions) sink() (telemetry.Sink, error) {
	switch o.cfg.TelemetrySink {
	case config.SinkRedis:
		return redissink.New(o.cfg.Redis, redissink.WithLogger(slog.New(o.handler)))
	case config.SinkNone:
		return discardSink{}, nil
	default:
		return memorysink.New(o.cfg.TelemetryBuffer)
	}
}

type discardSink struct{}

func (discardSink) SendTelemetryEvent(string, map[string]string, map[string]float64) {}
func (discardSink) Events(context.Context, int) ([]telemetry.Event, error)           { return nil, nil }
func (discardSink) Close() error                                                     { return nil }

// write renders v in the selected format. YAML output follows the json tags
// of v.
func (o *RootOptions) write(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	generic, err := validate.Decode(b)
	if err != nil {
		return err
	}
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(generic)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
