package dispatch

import (
	"testing"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Workers != 4 || cfg.MaxMatchFailures != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if got := cfg.ackTimeout(model.PriorityCritical); got != time.Minute {
		t.Fatalf("critical ack timeout: %s", got)
	}
	if got := cfg.ackTimeout(model.PriorityLow); got != 10*time.Minute {
		t.Fatalf("low ack timeout: %s", got)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Workers = 0 },
		func(c *Config) { c.QueueSize = -1 },
		func(c *Config) { c.MaxMatchFailures = 0 },
		func(c *Config) { c.RetryBackoffMS = -1 },
		func(c *Config) { c.AckTimeoutSeconds = map[string]int{"high": 0} },
		func(c *Config) { c.AckTimeoutSeconds = map[string]int{"urgent": 30} },
	}
	for i, mutate := range cases {
		var cfg Config
		cfg.SetDefaults()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestRetryBackoffDoubles(t *testing.T) {
	cfg := Config{RetryBackoffMS: 100}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if got := cfg.retryBackoff(i + 1); got != w {
			t.Fatalf("failure %d: expected %s, got %s", i+1, w, got)
		}
	}
}
