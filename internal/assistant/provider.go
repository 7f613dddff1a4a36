package assistant

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"lifeassistant/internal/core"
)

// Request is one completion call.
type Request struct {
	System    string
	Messages  []core.Message
	MaxTokens int
}

// Provider is a hosted chat model.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Provider names accepted by NewProvider.
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string // overrides the API endpoint; tests only
}

// NewProvider builds the provider named by cfg.Name.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("assistant not configured: missing API key for %q", cfg.Name)
	}

	switch cfg.Name {
	case ProviderClaude, "":
		model := cfg.Model
		if model == "" {
			model = DefaultClaudeModel
		}
		return newClaudeProvider(cfg.APIKey, model, cfg.BaseURL, &http.Client{Timeout: 60 * time.Second}), nil
	case ProviderGemini:
		model := cfg.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		return newGeminiProvider(ctx, cfg.APIKey, model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (valid: claude, gemini)", cfg.Name)
	}
}
