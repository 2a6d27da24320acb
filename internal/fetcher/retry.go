package fetcher

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/progress"
)

const (
	// DefaultMaxAttempts is the number of fetch attempts before giving up.
	DefaultMaxAttempts = 3
	// DefaultInitialBackoff is the delay after the first failed attempt.
	DefaultInitialBackoff = 500 * time.Millisecond
	// DefaultMaxBackoff caps the delay between attempts.
	DefaultMaxBackoff = 8 * time.Second
	// DefaultMultiplier grows the delay after each failed attempt.
	DefaultMultiplier = 2.0
)

// RetryPolicy bounds how transport failures are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialBackoff is the delay after the first failure.
	InitialBackoff time.Duration
	// MaxBackoff caps any single delay.
	MaxBackoff time.Duration
	// Multiplier is applied to the delay after every failure.
	Multiplier float64
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
	}
}

// normalized fills zero or invalid fields with defaults.
func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}

	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}

	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}

	return p
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalized()

	delay := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}

	return min(time.Duration(delay), p.MaxBackoff)
}

// Retrying retries network failures of the wrapped fetcher with backoff.
// Digest and local I/O failures are returned immediately.
type Retrying struct {
	// next performs the individual attempts.
	next Interface
	// policy bounds the attempts and delays.
	policy RetryPolicy
	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps next with the given retry policy.
func NewRetrying(next Interface, policy RetryPolicy) *Retrying {
	return &Retrying{
		next:   next,
		policy: policy.normalized(),
		sleep:  sleepContext,
	}
}

// Fetch calls the wrapped fetcher until it succeeds, fails with a
// non-retryable outcome or the attempts are exhausted.
func (r *Retrying) Fetch(ctx context.Context, url, destinationPath string, opts ...FetchOption) artifact.Outcome {
	options := applyFetchOptions(opts)
	if options.observer != nil {
		// Each attempt restarts at zero; keep the caller's view monotonic.
		opts = append(slices.Clip(opts), WithProgress(progress.Monotonic(options.observer)))
	}

	for attempt := 1; ; attempt++ {
		outcome := r.next.Fetch(ctx, url, destinationPath, opts...)
		if outcome.Kind != artifact.OutcomeNetworkFailure {
			return outcome
		}

		if attempt >= r.policy.MaxAttempts {
			return artifact.Outcome{
				Kind: artifact.OutcomeNetworkFailure,
				Err:  fmt.Errorf("giving up after %d attempts: %w", attempt, outcome.Err),
			}
		}

		delay := r.policy.Backoff(attempt)

		logger.WarnKV(ctx, "Fetch failed, retrying",
			"url", url,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"delay", delay,
			"error", outcome.Err)

		if err := r.sleep(ctx, delay); err != nil {
			return artifact.NetworkFailure(fmt.Errorf("retry aborted after %d attempts: %w", attempt, err))
		}
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
