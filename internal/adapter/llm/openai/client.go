// Package openai implements the AI provider contract on top of the
// OpenAI Chat Completion API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	llmhttp "github.com/cwhitney/diffscope/internal/adapter/llm/http"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 60 * time.Second
	providerName   = "openai"
)

// HTTPClient is a low-level client for the Chat Completion API.
type HTTPClient struct {
	apiKey      string
	model       string
	baseURL     string
	client      *http.Client
	retryConfig llmhttp.RetryConfig
}

// NewHTTPClient creates a client for the given key and model.
func NewHTTPClient(apiKey, model string) *HTTPClient {
	return &HTTPClient{
		apiKey:      apiKey,
		model:       model,
		baseURL:     defaultBaseURL,
		client:      &http.Client{Timeout: defaultTimeout},
		retryConfig: llmhttp.DefaultRetryConfig(),
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *HTTPClient) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// SetTimeout sets the HTTP timeout.
func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetRetryConfig overrides the default retry policy.
func (c *HTTPClient) SetRetryConfig(config llmhttp.RetryConfig) {
	c.retryConfig = config
}

// CallOptions contains per-call options.
type CallOptions struct {
	System      string
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// APIResponse is the parsed result of one successful call.
type APIResponse struct {
	Text         string
	TokensIn     int
	TokensOut    int
	Model        string
	FinishReason string
}

// Call sends one prompt to the Chat Completion API, retrying transient
// failures with backoff.
func (c *HTTPClient) Call(ctx context.Context, prompt string, options CallOptions) (*APIResponse, error) {
	messages := []Message{}
	if options.System != "" {
		messages = append(messages, Message{Role: "system", Content: options.System})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	reqBody := ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if options.MaxTokens > 0 {
		reqBody.MaxTokens = options.MaxTokens
	}
	if options.Temperature > 0 {
		reqBody.Temperature = options.Temperature
	}
	if options.JSONMode {
		reqBody.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"

	var bodyBytes []byte
	err = llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if reqErr != nil {
			return &llmhttp.Error{
				Type:     llmhttp.ErrTypeUnknown,
				Message:  reqErr.Error(),
				Provider: providerName,
			}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, callErr := c.client.Do(req)
		if callErr != nil {
			return llmhttp.NewTimeoutError(providerName, callErr.Error())
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return llmhttp.NewTimeoutError(providerName, readErr.Error())
		}
		if resp.StatusCode >= 400 {
			return classifyStatus(resp.StatusCode, body)
		}

		bodyBytes = body
		return nil
	}, c.retryConfig)
	if err != nil {
		return nil, err
	}

	var completionResp ChatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &completionResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(completionResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}

	choice := completionResp.Choices[0]
	return &APIResponse{
		Text:         choice.Message.Content,
		TokensIn:     completionResp.Usage.PromptTokens,
		TokensOut:    completionResp.Usage.CompletionTokens,
		Model:        completionResp.Model,
		FinishReason: choice.FinishReason,
	}, nil
}

// classifyStatus maps API status codes to typed errors.
func classifyStatus(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeAuthentication,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	case http.StatusTooManyRequests:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeRateLimit,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   providerName,
		}
	case http.StatusBadRequest, http.StatusNotFound:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeInvalidRequest,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	case http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return llmhttp.NewOverloadedError(providerName, message, statusCode)
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	}
}
