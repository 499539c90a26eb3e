package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaCompleteUsesCurrentSettings(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"hello","done":true}`))
	}))
	defer srv.Close()

	model := "llama3.2"
	svc := NewOllamaServiceWithGetters(func() string { return srv.URL }, func() string { return model })

	out, err := svc.Complete(context.Background(), "hi", 100, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "llama3.2", got.Model)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 100, got.Options["num_predict"])

	model = "qwen2"
	_, err = svc.Complete(context.Background(), "hi", 100, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "qwen2", got.Model)
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaService(srv.URL, "x").Complete(context.Background(), "hi", 10, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	svc := NewOllamaService("http://127.0.0.1:1", "x")
	assert.NoError(t, svc.Ping(context.Background(), srv.URL))
	assert.Error(t, svc.Ping(context.Background(), ""))
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"category\":"},{"type":"text","text":"\"Receipts\"}"}]}`))
	}))
	defer srv.Close()

	out, err := NewAnthropicService("key", "", srv.URL+"/").Complete(context.Background(), "classify", 500, 0.7)
	require.NoError(t, err)
	assert.Equal(t, `{"category":"Receipts"}`, out)
}

func TestAnthropicEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicService("key", "m", srv.URL).Complete(context.Background(), "x", 1, 0)
	assert.Error(t, err)
}

func failing(err error) CompletionClient {
	return CompletionFunc(func(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
		return "", err
	})
}

func answering(s string, calls *int) CompletionClient {
	return CompletionFunc(func(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
		*calls++
		return s, nil
	})
}

func TestFallbackOnQuotaOrConnectionErrors(t *testing.T) {
	for _, err := range []error{
		errors.New("googleapi: Error 429: Resource has been exhausted"),
		errors.New("dial tcp 10.0.0.1:443: connection refused"),
	} {
		calls := 0
		svc := NewFallbackService("gemini", failing(err), "ollama", answering("local", &calls))

		out, gotErr := svc.Complete(context.Background(), "p", 10, 0)
		require.NoError(t, gotErr)
		assert.Equal(t, "local", out)
		assert.Equal(t, 1, calls)
	}
}

func TestFallbackKeepsOtherErrors(t *testing.T) {
	calls := 0
	svc := NewFallbackService("gemini", failing(errors.New("invalid argument")), "ollama", answering("local", &calls))

	_, err := svc.Complete(context.Background(), "p", 10, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini completion failed")
	assert.Zero(t, calls)
}

func TestRateLimitedHonoursContext(t *testing.T) {
	calls := 0
	limited := NewRateLimited(answering("ok", &calls), 1, 1)

	_, err := limited.Complete(context.Background(), "p", 1, 0)
	require.NoError(t, err)

	// The second call would wait a minute for a token.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, "p", 1, 0)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRateLimitedDisabled(t *testing.T) {
	calls := 0
	inner := answering("ok", &calls)
	assert.IsType(t, inner, NewRateLimited(inner, 0, 1))
}

func TestNewCompletionClientRequiresAnthropicKey(t *testing.T) {
	_, err := NewCompletionClient(context.Background(), Config{Provider: ProviderAnthropic})
	assert.Error(t, err)

	client, err := NewCompletionClient(context.Background(), Config{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
