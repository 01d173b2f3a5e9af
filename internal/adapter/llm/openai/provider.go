package openai

import (
	"context"
	"errors"
	"time"

	"github.com/cwhitney/diffscope/internal/adapter/llm"
	llmhttp "github.com/cwhitney/diffscope/internal/adapter/llm/http"
	"github.com/cwhitney/diffscope/internal/domain"
)

const (
	defaultMaxTokens  = 8192
	systemInstruction = "You are a change-impact analysis assistant. You respond only with a single JSON object and never wrap it in markdown fencing."
)

// Provider adapts the HTTP client to the llm.Provider contract.
type Provider struct {
	client *HTTPClient
	logger llmhttp.Logger
}

// NewProvider creates a provider for the given key and model. A nil
// logger disables request logging.
func NewProvider(apiKey, model string, logger llmhttp.Logger) *Provider {
	return &Provider{
		client: NewHTTPClient(apiKey, model),
		logger: logger,
	}
}

// Client exposes the underlying HTTP client so callers can adjust its
// base URL or timeouts.
func (p *Provider) Client() *HTTPClient {
	return p.client
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	return providerName
}

// GenerateTestScenarios implements llm.Provider.
func (p *Provider) GenerateTestScenarios(ctx context.Context, prompt string, maxScenarios int) ([]domain.TestScenario, error) {
	text, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return llm.ParseTestScenarios(providerName, text, maxScenarios)
}

// GenerateCodeReview implements llm.Provider.
func (p *Provider) GenerateCodeReview(ctx context.Context, prompt string, maxItems int) ([]domain.CodeReviewItem, error) {
	text, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return llm.ParseCodeReviewItems(providerName, text, maxItems)
}

func (p *Provider) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	if p.logger != nil {
		p.logger.LogRequest(ctx, llmhttp.RequestLog{
			Provider:    providerName,
			Model:       p.client.model,
			Timestamp:   start,
			PromptChars: len(prompt),
			APIKey:      p.client.apiKey,
		})
	}

	resp, err := p.client.Call(ctx, prompt, CallOptions{
		System:    systemInstruction,
		MaxTokens: defaultMaxTokens,
		JSONMode:  true,
	})
	if err != nil {
		return "", p.wrapError(ctx, err, time.Since(start))
	}

	if p.logger != nil {
		p.logger.LogResponse(ctx, llmhttp.ResponseLog{
			Provider:   providerName,
			Model:      resp.Model,
			Timestamp:  time.Now(),
			Duration:   time.Since(start),
			TokensIn:   resp.TokensIn,
			TokensOut:  resp.TokensOut,
			StopReason: resp.FinishReason,
		})
	}
	return resp.Text, nil
}

func (p *Provider) wrapError(ctx context.Context, err error, duration time.Duration) error {
	kind := domain.KindInternal
	statusCode := 0
	retryable := false

	var httpErr *llmhttp.Error
	if errors.As(err, &httpErr) {
		kind = httpErr.DomainKind()
		statusCode = httpErr.StatusCode
		retryable = httpErr.Retryable
	}

	if p.logger != nil {
		p.logger.LogError(ctx, llmhttp.ErrorLog{
			Provider:   providerName,
			Model:      p.client.model,
			Timestamp:  time.Now(),
			Duration:   duration,
			Error:      err,
			StatusCode: statusCode,
			Retryable:  retryable,
		})
	}

	return domain.NewPipelineError("ai-generation", kind, "openai call failed", err)
}
