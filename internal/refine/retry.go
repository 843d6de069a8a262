package refine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Retry defaults
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 15 * time.Second
	BackoffMultiplier  = 2.0
)

// RetryConfig configures randomized exponential backoff
type RetryConfig struct {
	MaxAttempts int           // Total attempts, first call included
	BaseDelay   time.Duration // Lower bound of every delay
	MaxDelay    time.Duration // Upper bound of every delay
	Multiplier  float64       // Growth of the upper bound per attempt
}

// DefaultRetryConfig returns the backoff used for refinement calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  BackoffMultiplier,
	}
}

// delay picks a random wait in [BaseDelay, min(MaxDelay, BaseDelay*Multiplier^attempt)]
func (c RetryConfig) delay(attempt int) time.Duration {
	upper := float64(c.BaseDelay)
	for i := 0; i < attempt; i++ {
		upper *= c.Multiplier
	}
	if upper > float64(c.MaxDelay) {
		upper = float64(c.MaxDelay)
	}
	span := int64(upper) - int64(c.BaseDelay)
	if span <= 0 {
		return c.BaseDelay
	}
	return c.BaseDelay + time.Duration(rand.Int64N(span+1))
}

// retryWithBackoff runs fn until it succeeds or MaxAttempts is reached.
// Context cancellation stops retrying immediately.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}

		if attempt < config.MaxAttempts-1 {
			wait := config.delay(attempt)
			logger.Warn("refinement call failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
				zap.Error(err))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, op, config.MaxAttempts, lastErr)
}

// retrying wraps a Refiner so every call is retried
type retrying struct {
	next   Refiner
	config RetryConfig
	logger *zap.Logger
}

// WithRetry wraps r with retry and backoff
func WithRetry(r Refiner, config RetryConfig, logger *zap.Logger) Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retrying{next: r, config: config, logger: logger}
}

func (r *retrying) Split(ctx context.Context, req SplitRequest) (*SplitProposal, error) {
	return retryWithBackoff(ctx, r.config, r.logger, "split", func(ctx context.Context) (*SplitProposal, error) {
		return r.next.Split(ctx, req)
	})
}

func (r *retrying) Compare(ctx context.Context, req CompareRequest) (*CompareProposal, error) {
	return retryWithBackoff(ctx, r.config, r.logger, "compare", func(ctx context.Context) (*CompareProposal, error) {
		return r.next.Compare(ctx, req)
	})
}

func (r *retrying) ProposeHierarchy(ctx context.Context, req HierarchyRequest) (*HierarchyProposal, error) {
	return retryWithBackoff(ctx, r.config, r.logger, "hierarchy", func(ctx context.Context) (*HierarchyProposal, error) {
		return r.next.ProposeHierarchy(ctx, req)
	})
}

func (r *retrying) Provider() string {
	return r.next.Provider()
}
