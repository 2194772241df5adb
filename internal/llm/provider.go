// Package llm provides model backends behind a uniform chat interface.
//
// Each supported provider hides its endpoint, auth, and request shaping
// behind the Provider interface; backends are selected from a registry
// keyed on the provider identifier, and unknown identifiers fail before
// any network use.
package llm

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// FallbackKeyEnv is the universal API key environment fallback, checked
// after the provider-specific variable.
const FallbackKeyEnv = "TAGFORGE_API_KEY"

// DefaultModelEnv names the env var supplying the default model string.
const DefaultModelEnv = "TAGFORGE_MODEL"

// DefaultModel is used when neither flag nor environment names a model.
const DefaultModel = "openai/gpt-4o-mini"

// Provider is a model backend: one conversation in, one response out.
type Provider interface {
	// Chat sends the conversation and returns the model's response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider identifier.
	Name() string
}

// Message is one turn of a conversation.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	ToolCalls  []ToolCall // assistant turns only
	ToolCallID string     // tool turns only
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolDef is the model-facing definition of an available tool.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ChatRequest is one model call.
type ChatRequest struct {
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content      string
	Thinking     string
	ToolCalls    []ToolCall
	StopReason   string
	InputTokens  int64
	OutputTokens int64
	Model        string
}

// Usage is a cumulative token count.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates one response's tokens.
func (u *Usage) Add(resp *ChatResponse) {
	u.InputTokens += resp.InputTokens
	u.OutputTokens += resp.OutputTokens
}

// TransportError is a provider/transport failure: fatal for the current
// run, carrying the underlying cause.
type TransportError struct {
	Provider string
	Model    string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %s (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Config selects and configures a backend.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Retry     RetryConfig
}

// RetryConfig bounds the adapter's transient-error retry. Zero values
// take the defaults; MaxRetries < 0 disables retry entirely.
type RetryConfig struct {
	MaxRetries  int
	InitBackoff int // seconds
	MaxBackoff  int // seconds
}

// backendSpec describes one registry entry. An empty baseURL means a
// native fantasy provider; otherwise the provider speaks the
// OpenAI-compatible protocol at that base.
type backendSpec struct {
	baseURL    string
	keyEnv     string
	literalKey string // implied key for local endpoints
	keyFree    bool   // no credential required
}

var backends = map[string]backendSpec{
	"anthropic":   {keyEnv: "ANTHROPIC_API_KEY"},
	"openai":      {keyEnv: "OPENAI_API_KEY"},
	"google":      {keyEnv: "GEMINI_API_KEY"},
	"ollama":      {baseURL: "http://localhost:11434/v1", literalKey: "ollama", keyFree: true},
	"huggingface": {baseURL: "https://api-inference.huggingface.co/v1", keyEnv: "HUGGINGFACE_API_KEY"},
	"openrouter":  {baseURL: "https://openrouter.ai/api/v1", keyEnv: "OPENROUTER_API_KEY"},
	"lmstudio":    {baseURL: "http://localhost:1234/v1", literalKey: "lmstudio", keyFree: true},
}

// KnownProviders returns the registered provider identifiers, sorted.
func KnownProviders() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether the provider identifier is registered.
func Known(provider string) bool {
	_, ok := backends[provider]
	return ok
}

// ParseModelString splits "provider/model" on the first slash. A bare
// model name defaults to the openai provider.
func ParseModelString(s string) (provider, model string) {
	if i := strings.Index(s, "/"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "openai", s
}

// DefaultModelString returns the model string from the environment, or
// the built-in default.
func DefaultModelString() string {
	if m := os.Getenv(DefaultModelEnv); m != "" {
		return m
	}
	return DefaultModel
}

// ResolveAPIKey finds the credential for a provider: explicit value,
// provider env var, universal fallback env var, then the provider's
// implied literal key for local endpoints.
func ResolveAPIKey(provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	spec, ok := backends[provider]
	if !ok {
		return os.Getenv(FallbackKeyEnv)
	}
	if spec.keyEnv != "" {
		if v := os.Getenv(spec.keyEnv); v != "" {
			return v
		}
	}
	if v := os.Getenv(FallbackKeyEnv); v != "" {
		return v
	}
	return spec.literalKey
}

// KeyEnvFor returns the provider-specific credential env var name, or "".
func KeyEnvFor(provider string) string {
	return backends[provider].keyEnv
}

// Validate checks the configuration pre-flight: the provider must be
// registered, the model named, and a credential present unless the
// provider runs without one.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	spec, ok := backends[c.Provider]
	if !ok {
		return fmt.Errorf("unsupported provider %q (known: %s)", c.Provider, strings.Join(KnownProviders(), ", "))
	}
	if !spec.keyFree && ResolveAPIKey(c.Provider, c.APIKey) == "" {
		return fmt.Errorf("API key required for provider %s (set %s or %s)", c.Provider, spec.keyEnv, FallbackKeyEnv)
	}
	return nil
}
