package dispatch

import (
	"fmt"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

// Config defines coordinator settings. Timeouts scale with priority; all of
// them are operational tuning, not business law.
type Config struct {
	// Workers sizes the dispatch worker pool.
	Workers int `json:"workers"`
	// QueueSize bounds the pending match job queue.
	QueueSize int `json:"queue_size"`

	// AckTimeoutSeconds maps priority names to the acknowledgement
	// deadline after an assignment.
	AckTimeoutSeconds map[string]int `json:"ack_timeout_seconds"`
	// AdaptiveAckTimeout lets observed acknowledgement latencies shorten
	// the configured deadlines.
	AdaptiveAckTimeout bool `json:"adaptive_ack_timeout"`

	// MaxMatchFailures escalates a case after this many consecutive
	// match attempts without a candidate.
	MaxMatchFailures int `json:"max_match_failures"`
	// RetryBackoffMS is the base delay before a failed match is retried;
	// it doubles with each consecutive failure.
	RetryBackoffMS int `json:"retry_backoff_ms"`
	// CriticalEscalationSeconds escalates a critical case that has not
	// been assigned within this deadline.
	CriticalEscalationSeconds int `json:"critical_escalation_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.AckTimeoutSeconds == nil {
		c.AckTimeoutSeconds = map[string]int{
			model.PriorityLow.String():      600,
			model.PriorityMedium.String():   300,
			model.PriorityHigh.String():     120,
			model.PriorityCritical.String(): 60,
		}
	}
	if c.MaxMatchFailures == 0 {
		c.MaxMatchFailures = 3
	}
	if c.RetryBackoffMS == 0 {
		c.RetryBackoffMS = 2000
	}
	if c.CriticalEscalationSeconds == 0 {
		c.CriticalEscalationSeconds = 300
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.MaxMatchFailures < 1 {
		return fmt.Errorf("max match failures must be positive")
	}
	if c.RetryBackoffMS < 0 {
		return fmt.Errorf("retry backoff must not be negative")
	}
	for name, secs := range c.AckTimeoutSeconds {
		if secs <= 0 {
			return fmt.Errorf("ack timeout for %s must be positive", name)
		}
		if _, err := model.ParsePriority(name); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) ackTimeout(p model.Priority) time.Duration {
	if secs, ok := c.AckTimeoutSeconds[p.String()]; ok {
		return time.Duration(secs) * time.Second
	}
	return time.Minute
}

func (c Config) retryBackoff(failures int) time.Duration {
	d := time.Duration(c.RetryBackoffMS) * time.Millisecond
	for i := 1; i < failures; i++ {
		d *= 2
	}
	return d
}
