package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to a provider. Waiting honours ctx.
type RateLimited struct {
	next    CompletionClient
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with the given burst.
// A non-positive perMinute disables limiting.
func NewRateLimited(next CompletionClient, perMinute, burst int) CompletionClient {
	if perMinute <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

// Complete implements CompletionClient
func (r *RateLimited) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("completion rate limit: %w", err)
	}
	return r.next.Complete(ctx, prompt, maxTokens, temperature)
}
