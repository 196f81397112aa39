package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"golang.org/x/time/rate"
)

// Classifier reports whether an attempt error may succeed on retry.
type Classifier func(error) bool

// Client runs outbound operations under a Policy.
type Client struct {
	policy   Policy
	limiter  *rate.Limiter
	classify Classifier
	code     string
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClassifier replaces remote.IsTransient as the retry decision.
func WithClassifier(c Classifier) Option {
	return func(cl *Client) { cl.classify = c }
}

// WithLimiter shares an existing limiter instead of building one from the policy.
func WithLimiter(l *rate.Limiter) Option {
	return func(cl *Client) { cl.limiter = l }
}

func New(p Policy, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	p = p.normalized()
	c := &Client{
		policy:   p,
		classify: remote.IsTransient,
		code:     common.CodeOCRUnavailable,
		logger:   logger,
	}
	if p.RatePerSecond > 0 {
		burst := int(p.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(p.RatePerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Named returns a copy of c that reports exhaustion under the given error code.
// The copy shares the rate limiter.
func (c *Client) Named(code string) *Client {
	cp := *c
	cp.code = code
	return &cp
}

// Policy returns the effective policy.
func (c *Client) Policy() Policy { return c.policy }

// Do runs op until it succeeds, fails permanently or the policy is exhausted.
// Each attempt gets its own timeout derived from ctx. Permanent errors are
// returned unchanged; exhaustion yields an AppError wrapping
// common.ErrServiceUnavailable; cancellation of ctx yields common.ErrCanceled.
func (c *Client) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return canceled(name, err)
	}

	attempts := 0
	var lastTransient bool
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		attempts++
		actx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
		err := op(actx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		lastTransient = c.classify(err)
		if !lastTransient {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("resilience.retry",
			"op", name,
			"attempt", attempts,
			"max_attempts", c.policy.MaxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(c.backOff(), ctx), notify)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return canceled(name, ctx.Err())
	case lastTransient:
		c.logger.Error("resilience.exhausted", "op", name, "attempts", attempts, "error", err)
		return common.NewAppError(c.code,
			fmt.Sprintf("%s unavailable after %d attempts", name, attempts),
			fmt.Errorf("%w: %w", common.ErrServiceUnavailable, err))
	default:
		return err
	}
}

func (c *Client) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.BaseDelay
	b.MaxInterval = c.policy.MaxDelay
	b.RandomizationFactor = c.policy.Jitter
	b.Multiplier = 2
	b.MaxElapsedTime = c.policy.MaxElapsed
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(c.policy.MaxAttempts-1))
}

func canceled(name string, cause error) error {
	if errors.Is(cause, common.ErrCanceled) {
		return cause
	}
	return common.NewAppError(common.CodeRunCanceled, name+" canceled", fmt.Errorf("%w: %w", common.ErrCanceled, cause))
}
