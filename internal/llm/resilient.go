package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kztmrk/kaiwa/internal/log"
)

// Resilient wraps a Client with a circuit breaker, proactive rate limiting
// and exponential backoff retry.
//
// Retry applies to the handshake only: once a single chunk has been streamed
// the attempt is final, so a mid-stream failure is never silently retried and
// chunks are never duplicated.
type Resilient struct {
	inner       Client
	breaker     *CircuitBreaker
	rateLimiter *rate.Limiter
	retryConfig RetryConfig
	logger      log.Logger
}

// ResilientOption customizes a Resilient client.
type ResilientOption func(*Resilient)

// WithCircuitBreaker overrides the default circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ResilientOption {
	return func(r *Resilient) { r.breaker = cb }
}

// WithRateLimiter sets a proactive rate limiter applied before each attempt.
func WithRateLimiter(l *rate.Limiter) ResilientOption {
	return func(r *Resilient) { r.rateLimiter = l }
}

// WithRetryConfig overrides the default retry configuration.
func WithRetryConfig(cfg RetryConfig) ResilientOption {
	return func(r *Resilient) { r.retryConfig = cfg }
}

// NewResilient wraps inner with default resilience settings.
func NewResilient(inner Client, logger log.Logger, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		inner:       inner,
		breaker:     NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		retryConfig: DefaultRetryConfig(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BreakerState exposes the circuit state for health reporting.
func (r *Resilient) BreakerState() CircuitState {
	return r.breaker.State()
}

// StreamCompletion implements Client.
func (r *Resilient) StreamCompletion(ctx context.Context, req Request, cb StreamCallback) (*Response, error) {
	if err := r.breaker.Allow(); err != nil {
		return nil, err
	}

	var lastErr error
	delay := r.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= r.retryConfig.MaxRetries; attempt++ {
		// Rate limit each attempt, retries included.
		if r.rateLimiter != nil {
			if err := r.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		streamed := false
		guarded := func(ctx context.Context, chunk string) error {
			streamed = true
			if cb == nil {
				return nil
			}
			return cb(ctx, chunk)
		}

		resp, err := r.inner.StreamCompletion(ctx, req, guarded)
		if err == nil {
			r.breaker.Success()
			r.logger.Debug("completion succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err
		r.breaker.Failure()

		// Once output reached the caller the attempt is final: surface the
		// partial response and its error as-is.
		if streamed || resp != nil && resp.Content != "" {
			return resp, err
		}

		if !retryableError(err) {
			return resp, err
		}

		// Last attempt - don't sleep
		if attempt == r.retryConfig.MaxRetries {
			break
		}

		r.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("completion after %d retries (elapsed: %v): %w",
		r.retryConfig.MaxRetries, time.Since(start), lastErr)
}
