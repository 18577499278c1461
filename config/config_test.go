package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if c.DotcomURL != "https://api.github.com" || c.Model != "copilot-nes" || c.MaxTokens != 256 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.TelemetrySink != SinkMemory || c.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Redis.Stream != "nextedit:telemetry" {
		t.Fatalf("nested redis defaults not applied: %+v", c.Redis)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NEXTEDIT_MODEL", "nes-large")
	t.Setenv("NEXTEDIT_EXCLUDE", "*.env;*/secrets/*")
	t.Setenv("NEXTEDIT_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("NEXTEDIT_LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6380")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if c.Model != "nes-large" || c.RequestsPerSecond != 2.5 {
		t.Fatalf("unexpected config: %+v", c)
	}
	if len(c.Exclude) != 2 || c.Exclude[1] != "*/secrets/*" {
		t.Fatalf("Exclude = %v", c.Exclude)
	}
	if l, _ := c.Level(); l != slog.LevelDebug {
		t.Fatalf("Level() = %v", l)
	}
	if c.Redis.RedisAddr != "redis:6380" {
		t.Fatalf("RedisAddr = %q", c.Redis.RedisAddr)
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	c := &Config{TelemetrySink: "kafka", RequestsPerSecond: -1, LogLevel: "loud"}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"NEXTEDIT_TELEMETRY_SINK", "NEXTEDIT_REQUESTS_PER_SECOND", "NEXTEDIT_LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
