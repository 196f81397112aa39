package resilience

import (
	"time"

	"github.com/joseph-ayodele/doc-ingest/internal/common"
)

// Policy bounds every outbound call made through a Client.
type Policy struct {
	Timeout     time.Duration // per attempt
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxElapsed  time.Duration // whole call, waits included; 0 = unbounded
	Jitter      float64       // randomization factor in [0,1)
	// RatePerSecond caps attempts across all callers sharing the client; 0 = no cap.
	RatePerSecond float64
}

// DefaultPolicy is 30s per attempt, 3 attempts, 500ms..5s backoff with 50% jitter.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		MaxElapsed:  90 * time.Second,
		Jitter:      0.5,
	}
}

// PolicyFromConfig maps the retry section of the configuration.
func PolicyFromConfig(cfg common.RetryConfig) Policy {
	return Policy{
		Timeout:       cfg.CallTimeout,
		MaxAttempts:   cfg.MaxAttempts,
		BaseDelay:     cfg.BaseDelay,
		MaxDelay:      cfg.MaxDelay,
		MaxElapsed:    cfg.MaxElapsed,
		Jitter:        cfg.Jitter,
		RatePerSecond: cfg.RatePerSecond,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = d.Jitter
	}
	return p
}
