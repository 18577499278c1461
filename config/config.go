// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ggoodman/nextedit-go/telemetry/redissink"
	"github.com/joeshaw/envdecode"
)

// Telemetry sink kinds.
const (
	SinkNone   = "none"
	SinkMemory = "memory"
	SinkRedis  = "redis"
)

// Config is decoded by envdecode. Slices are separated by semicolons.
type Config struct {
	// DotcomURL is the REST/GraphQL base URL. ENV: NEXTEDIT_DOTCOM_URL
	DotcomURL string `env:"NEXTEDIT_DOTCOM_URL,default=https://api.github.com"`
	// AgentsURL is the agents service base URL. ENV: NEXTEDIT_AGENTS_URL
	AgentsURL  string `env:"NEXTEDIT_AGENTS_URL,default=https://api.githubcopilot.com"`
	APIVersion string `env:"NEXTEDIT_API_VERSION,default=2022-11-28"`
	UserAgent  string `env:"NEXTEDIT_USER_AGENT,default=nextedit-go"`

	// CompletionsURL and Model select the remote edit endpoint.
	CompletionsURL string `env:"NEXTEDIT_COMPLETIONS_URL,default=https://copilot-proxy.githubusercontent.com"`
	Model          string `env:"NEXTEDIT_MODEL,default=copilot-nes"`
	MaxTokens      int    `env:"NEXTEDIT_MAX_TOKENS,default=256"`

	// RequestsPerSecond paces API calls; zero disables pacing.
	RequestsPerSecond float64       `env:"NEXTEDIT_REQUESTS_PER_SECOND,default=0"`
	Burst             int           `env:"NEXTEDIT_BURST,default=1"`
	RequestTimeout    time.Duration `env:"NEXTEDIT_REQUEST_TIMEOUT,default=30s"`

	// Token is a bearer token. ENV: NEXTEDIT_TOKEN
	Token string `env:"NEXTEDIT_TOKEN"`
	// Exclude lists content exclusion globs. ENV: NEXTEDIT_EXCLUDE
	Exclude []string `env:"NEXTEDIT_EXCLUDE"`

	// TelemetrySink is one of none, memory or redis. ENV: NEXTEDIT_TELEMETRY_SINK
	TelemetrySink   string `env:"NEXTEDIT_TELEMETRY_SINK,default=memory"`
	TelemetryBuffer int    `env:"NEXTEDIT_TELEMETRY_BUFFER,default=1000"`
	Redis           redissink.Config

	LogLevel string `env:"NEXTEDIT_LOG_LEVEL,default=info"`
}

// Load decodes the environment and validates the result.
func Load() (*Config, error) {
	var c Config
	if err := envdecode.Decode(&c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.TelemetrySink {
	case SinkNone, SinkMemory, SinkRedis:
	default:
		errs = append(errs, fmt.Errorf("NEXTEDIT_TELEMETRY_SINK: unknown sink %q", c.TelemetrySink))
	}
	if c.TelemetrySink == SinkMemory && c.TelemetryBuffer <= 0 {
		errs = append(errs, errors.New("NEXTEDIT_TELEMETRY_BUFFER: must be positive"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("NEXTEDIT_REQUESTS_PER_SECOND: must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("NEXTEDIT_LOG_LEVEL: %w", err)
	}
	return l, nil
}
