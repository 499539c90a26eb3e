package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// FallbackService tries a primary provider and falls back to a secondary
// one when the primary cannot be reached or has run out of quota.
type FallbackService struct {
	primary     CompletionClient
	secondary   CompletionClient
	primaryName string
	secondName  string
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primaryName string, primary CompletionClient, secondName string, secondary CompletionClient) *FallbackService {
	return &FallbackService{
		primary:     primary,
		secondary:   secondary,
		primaryName: primaryName,
		secondName:  secondName,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
		"overloaded",
	}
	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// Complete implements CompletionClient
func (f *FallbackService) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if f.primary != nil {
		result, err := f.primary.Complete(ctx, prompt, maxTokens, temperature)
		if err == nil {
			return result, nil
		}
		if f.secondary == nil || !(isConnectionError(err) || isQuotaError(err)) {
			return "", fmt.Errorf("%s completion failed: %w", f.primaryName, err)
		}
		logrus.Warnf("[AI] %s unavailable: %v, falling back to %s", f.primaryName, err, f.secondName)
	}

	if f.secondary != nil {
		result, err := f.secondary.Complete(ctx, prompt, maxTokens, temperature)
		if err != nil {
			return "", fmt.Errorf("%s completion failed: %w", f.secondName, err)
		}
		return result, nil
	}

	return "", fmt.Errorf("no AI provider available for completion")
}
