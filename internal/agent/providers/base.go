package providers

import (
	"context"
	"time"

	"github.com/agentctl/runtime/internal/backoff"
)

// BaseProvider holds shared retry configuration for LLM providers.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

// NewBaseProvider creates a base provider with sane defaults.
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return BaseProvider{
		name:       name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Retry executes op with exponential backoff if isRetryable returns true,
// stopping as soon as op succeeds or isRetryable rejects the error.
func (b *BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}

	retryCtx, stopRetrying := context.WithCancel(ctx)
	defer stopRetrying()

	policy := backoff.BackoffPolicy{
		InitialMs: float64(b.retryDelay.Milliseconds()),
		MaxMs:     float64(b.retryDelay.Milliseconds()) * float64(b.maxRetries),
		Factor:    2,
		Jitter:    0.1,
	}

	result, err := backoff.RetryWithBackoff(retryCtx, policy, b.maxRetries, func(int) (struct{}, error) {
		opErr := op()
		if opErr == nil {
			return struct{}{}, nil
		}
		if isRetryable == nil || !isRetryable(opErr) {
			stopRetrying()
		}
		return struct{}{}, opErr
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return result.LastError
}
