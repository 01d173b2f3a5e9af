package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmhttp "github.com/cwhitney/diffscope/internal/adapter/llm/http"
	"github.com/cwhitney/diffscope/internal/domain"
)

func fastRetry() llmhttp.RetryConfig {
	return llmhttp.RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func completionBody(text string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:     "chatcmpl-123",
		Object: "chat.completion",
		Model:  "gpt-4o",
		Choices: []Choice{{
			Index:        0,
			Message:      Message{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: Usage{PromptTokens: 90, CompletionTokens: 30, TotalTokens: 120},
	}
}

func TestCallSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[1].Content)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		json.NewEncoder(w).Encode(completionBody("hi there"))
	}))
	defer server.Close()

	client := NewHTTPClient("test-key", "gpt-4o")
	client.SetBaseURL(server.URL)

	resp, err := client.Call(context.Background(), "hello", CallOptions{
		System:    "be terse",
		MaxTokens: 1024,
		JSONMode:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, 90, resp.TokensIn)
	assert.Equal(t, 30, resp.TokensOut)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestCallWithoutSystemSendsSingleMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		json.NewEncoder(w).Encode(completionBody("ok"))
	}))
	defer server.Close()

	client := NewHTTPClient("test-key", "gpt-4o")
	client.SetBaseURL(server.URL)

	_, err := client.Call(context.Background(), "hello", CallOptions{})
	require.NoError(t, err)
}

func TestCallAuthenticationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error: ErrorDetail{Message: "Incorrect API key provided", Type: "invalid_request_error"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient("bad-key", "gpt-4o")
	client.SetBaseURL(server.URL)
	client.SetRetryConfig(fastRetry())

	_, err := client.Call(context.Background(), "hello", CallOptions{})
	require.Error(t, err)

	var httpErr *llmhttp.Error
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, llmhttp.ErrTypeAuthentication, httpErr.Type)
	assert.Contains(t, httpErr.Message, "Incorrect API key")
}

func TestCallRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(completionBody("recovered"))
	}))
	defer server.Close()

	client := NewHTTPClient("test-key", "gpt-4o")
	client.SetBaseURL(server.URL)
	client.SetRetryConfig(fastRetry())

	resp, err := client.Call(context.Background(), "hello", CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallInvalidRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Message: "model not supported"}})
	}))
	defer server.Close()

	client := NewHTTPClient("test-key", "gpt-4o")
	client.SetBaseURL(server.URL)
	client.SetRetryConfig(fastRetry())

	_, err := client.Call(context.Background(), "hello", CallOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProviderGenerateCodeReview(t *testing.T) {
	reviewText := `{"items": [{"file": "a.ts", "line": 3, "severity": "warning", "category": "bug", "title": "off by one", "description": "loop bound"}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionBody(reviewText))
	}))
	defer server.Close()

	provider := NewProvider("test-key", "gpt-4o", nil)
	provider.Client().SetBaseURL(server.URL)

	items, err := provider.GenerateCodeReview(context.Background(), "prompt", 15)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "off by one", items[0].Title)
	assert.NotEmpty(t, items[0].ID)
}

func TestProviderMapsErrorsToDomainKinds(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantKind   domain.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, domain.KindAIAuthentication},
		{"rate limited", http.StatusTooManyRequests, domain.KindAIRateLimited},
		{"unavailable", http.StatusServiceUnavailable, domain.KindAIOverloaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			provider := NewProvider("test-key", "gpt-4o", nil)
			provider.Client().SetBaseURL(server.URL)
			provider.Client().SetRetryConfig(fastRetry())

			_, err := provider.GenerateTestScenarios(context.Background(), "prompt", 10)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, tt.wantKind))
		})
	}
}
