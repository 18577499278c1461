// Package redissink provides a telemetry.Sink that appends events to a Redis
// stream so that several processes can feed one collector.
package redissink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/nextedit-go/telemetry"
	"github.com/redis/go-redis/v9"
)

// Config for the Redis sink. Its env tags are decoded as part of config.Config.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// Stream is the stream key events are appended to. ENV: TELEMETRY_STREAM
	Stream string `env:"TELEMETRY_STREAM,default=nextedit:telemetry"`
	// MaxLen caps the stream length (approximate trimming). ENV: TELEMETRY_STREAM_MAXLEN
	MaxLen int64 `env:"TELEMETRY_STREAM_MAXLEN,default=10000"`
	// SendTimeout bounds each XADD. ENV: TELEMETRY_SEND_TIMEOUT
	SendTimeout time.Duration `env:"TELEMETRY_SEND_TIMEOUT,default=2s"`
}

// Option configures New.
type Option func(*Sink)

// WithClient uses an existing client instead of dialing RedisAddr. The
// caller keeps ownership of the client.
func WithClient(cl *redis.Client) Option {
	return func(s *Sink) { s.client = cl }
}

// WithLogger receives send failures. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// Sink implements telemetry.Sink on a Redis stream.
type Sink struct {
	client      *redis.Client
	ownsClient  bool
	stream      string
	maxLen      int64
	sendTimeout time.Duration
	log         *slog.Logger
}

func New(cfg Config, opts ...Option) (*Sink, error) {
	s := &Sink{
		stream:      cfg.Stream,
		maxLen:      cfg.MaxLen,
		sendTimeout: cfg.SendTimeout,
		log:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.client == nil {
		addr := cfg.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		s.client = redis.NewClient(&redis.Options{Addr: addr})
		s.ownsClient = true
	}
	if err := s.client.Ping(context.Background()).Err(); err != nil {
		if s.ownsClient {
			_ = s.client.Close()
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if s.stream == "" {
		s.stream = "nextedit:telemetry"
	}
	if s.sendTimeout <= 0 {
		s.sendTimeout = 2 * time.Second
	}
	return s, nil
}

// SendTelemetryEvent appends the event to the stream. Failures are logged;
// telemetry never fails the caller.
func (s *Sink) SendTelemetryEvent(name string, properties map[string]string, measurements map[string]float64) {
	ev := telemetry.Event{Name: name, Properties: properties, Measurements: measurements, Time: time.Now().UTC()}
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("telemetry.redis.marshal.fail", slog.String("event", name), slog.String("err", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	args := &redis.XAddArgs{Stream: s.stream, Values: map[string]interface{}{"n": name, "d": data}}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		s.log.Error("telemetry.redis.xadd.fail", slog.String("event", name), slog.String("err", err.Error()))
	}
}

// Events reads the newest events from the stream, oldest first.
func (s *Sink) Events(ctx context.Context, limit int) ([]telemetry.Event, error) {
	var (
		msgs []redis.XMessage
		err  error
	)
	if limit > 0 {
		msgs, err = s.client.XRevRangeN(ctx, s.stream, "+", "-", int64(limit)).Result()
		// XREVRANGE is newest first.
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	} else {
		msgs, err = s.client.XRange(ctx, s.stream, "-", "+").Result()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stream %s: %w", s.stream, err)
	}

	out := make([]telemetry.Event, 0, len(msgs))
	for _, m := range msgs {
		var payload []byte
		switch v := m.Values["d"].(type) {
		case string:
			payload = []byte(v)
		case []byte:
			payload = v
		default:
			continue
		}
		var ev telemetry.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Warn("telemetry.redis.unmarshal.fail", slog.String("id", m.ID), slog.String("err", err.Error()))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Close closes the Redis client if the sink created it.
func (s *Sink) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

var _ telemetry.Sink = (*Sink)(nil)
