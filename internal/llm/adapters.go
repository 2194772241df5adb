package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/google"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openaicompat"
)

// Retry configuration defaults
const (
	defaultMaxRetries  = 5
	defaultInitBackoff = 1 * time.Second
	defaultMaxBackoff  = 60 * time.Second
	backoffFactor      = 2.0
)

// isRateLimitError checks if the error is a rate limit error.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "capacity")
}

// isServerError checks if the error is a transient server error (5xx).
func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") ||
		strings.Contains(errStr, "temporarily unavailable")
}

// isRetryableError checks if the error is retryable (rate limit or server error).
func isRetryableError(err error) bool {
	return isRateLimitError(err) || isServerError(err)
}

// isBillingError checks if the error is a billing/payment/quota error (fatal, no retry).
func isBillingError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "billing") ||
		strings.Contains(errStr, "payment") ||
		strings.Contains(errStr, "credits") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "insufficient") ||
		strings.Contains(errStr, "402") ||
		strings.Contains(errStr, "subscription") ||
		strings.Contains(errStr, "expired")
}

// FantasyAdapter wraps a fantasy.LanguageModel behind the Provider interface.
type FantasyAdapter struct {
	model        fantasy.LanguageModel
	maxTokens    int
	providerName string
	retry        RetryConfig
}

// NewFantasyAdapter creates a new adapter wrapping a fantasy LanguageModel.
func NewFantasyAdapter(model fantasy.LanguageModel, maxTokens int, providerName string, retry RetryConfig) *FantasyAdapter {
	return &FantasyAdapter{
		model:        model,
		maxTokens:    maxTokens,
		providerName: providerName,
		retry:        retry,
	}
}

// Name returns the provider identifier.
func (a *FantasyAdapter) Name() string { return a.providerName }

// getRetryConfig returns effective retry settings with defaults.
func (a *FantasyAdapter) getRetryConfig() (maxRetries int, initBackoff, maxBackoff time.Duration) {
	maxRetries = a.retry.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	} else if maxRetries < 0 {
		maxRetries = 0
	}
	initBackoff = time.Duration(a.retry.InitBackoff) * time.Second
	if initBackoff <= 0 {
		initBackoff = defaultInitBackoff
	}
	maxBackoff = time.Duration(a.retry.MaxBackoff) * time.Second
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return
}

// transportErr wraps a failure with the provider/model context so callers
// can branch on the error kind.
func (a *FantasyAdapter) transportErr(err error) error {
	return &TransportError{Provider: a.providerName, Model: a.model.Model(), Err: err}
}

// Chat implements the Provider interface using fantasy's Generate method.
func (a *FantasyAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	// Convert messages to fantasy Prompt
	var prompt fantasy.Prompt

	for _, m := range req.Messages {
		var msg fantasy.Message

		switch m.Role {
		case "system":
			msg = fantasy.NewSystemMessage(m.Content)
		case "user":
			msg = fantasy.NewUserMessage(m.Content)
		case "assistant":
			var parts []fantasy.MessagePart
			if m.Content != "" {
				parts = append(parts, fantasy.TextPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				parts = append(parts, fantasy.ToolCallPart{
					ToolCallID: tc.ID,
					ToolName:   tc.Name,
					Input:      string(argsJSON),
				})
			}
			msg = fantasy.Message{
				Role:    fantasy.MessageRoleAssistant,
				Content: parts,
			}
		case "tool":
			msg = fantasy.Message{
				Role: fantasy.MessageRoleTool,
				Content: []fantasy.MessagePart{
					fantasy.ToolResultPart{
						ToolCallID: m.ToolCallID,
						Output:     fantasy.ToolResultOutputContentText{Text: m.Content},
					},
				},
			}
		default:
			continue
		}

		prompt = append(prompt, msg)
	}

	// Convert tools
	var tools []fantasy.Tool
	for _, t := range req.Tools {
		tools = append(tools, fantasy.FunctionTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	maxTokens := int64(a.maxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	call := fantasy.Call{
		Prompt:          prompt,
		Tools:           tools,
		MaxOutputTokens: &maxTokens,
	}

	// Generate with retry and exponential backoff. Billing errors fail
	// fast; only rate limits and 5xx are retried.
	maxRetries, initBackoff, maxBackoff := a.getRetryConfig()
	var resp *fantasy.Response
	var err error
	backoff := initBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err = a.model.Generate(ctx, call)
		if err == nil {
			break
		}

		if isBillingError(err) {
			return nil, a.transportErr(fmt.Errorf("billing/payment error (fatal): %w", err))
		}

		if !isRetryableError(err) {
			return nil, a.transportErr(err)
		}

		if attempt == maxRetries {
			return nil, a.transportErr(fmt.Errorf("failed after %d retries: %w", maxRetries, err))
		}

		select {
		case <-ctx.Done():
			return nil, a.transportErr(ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	result := &ChatResponse{
		StopReason:   string(resp.FinishReason),
		InputTokens:  int64(resp.Usage.InputTokens),
		OutputTokens: int64(resp.Usage.OutputTokens),
		Model:        a.model.Model(),
	}

	// Extract text and tool calls from response
	for _, content := range resp.Content {
		switch c := content.(type) {
		case *fantasy.TextContent:
			result.Content += c.Text
		case fantasy.TextContent:
			result.Content += c.Text
		case *fantasy.ReasoningContent:
			result.Thinking += c.Text
		case fantasy.ReasoningContent:
			result.Thinking += c.Text
		case *fantasy.ToolCallContent:
			var args map[string]interface{}
			json.Unmarshal([]byte(c.Input), &args)
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:   c.ToolCallID,
				Name: c.ToolName,
				Args: args,
			})
		case fantasy.ToolCallContent:
			var args map[string]interface{}
			json.Unmarshal([]byte(c.Input), &args)
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:   c.ToolCallID,
				Name: c.ToolName,
				Args: args,
			})
		}
	}

	return result, nil
}

// createFantasyProvider creates a fantasy provider for the registry entry.
func createFantasyProvider(providerName, apiKey, baseURL string) (fantasy.Provider, error) {
	spec, ok := backends[providerName]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}

	if baseURL == "" {
		baseURL = spec.baseURL
	}

	// Registry entries with a base URL speak the OpenAI-compatible
	// protocol; the rest are native fantasy providers.
	if baseURL != "" {
		return openaicompat.New(
			openaicompat.WithBaseURL(baseURL),
			openaicompat.WithAPIKey(apiKey),
			openaicompat.WithName(providerName),
		)
	}

	switch providerName {
	case "anthropic":
		return anthropic.New(anthropic.WithAPIKey(apiKey))
	case "openai":
		return openai.New(openai.WithAPIKey(apiKey))
	case "google":
		return google.New(google.WithGeminiAPIKey(apiKey))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}

// NewBackend creates a model backend from the configuration. Unknown
// providers and missing credentials fail here, before any network use.
func NewBackend(cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiKey := ResolveAPIKey(cfg.Provider, cfg.APIKey)

	fantasyProvider, err := createFantasyProvider(cfg.Provider, apiKey, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}

	model, err := fantasyProvider.LanguageModel(context.Background(), cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to get model %s: %w", cfg.Model, err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return NewFantasyAdapter(model, maxTokens, cfg.Provider, cfg.Retry), nil
}
