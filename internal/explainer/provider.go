package explainer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aleister1102/envdrift/internal/config"
)

// Provider produces raw completion text for a prompt. Implementations
// must be safe for concurrent use.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewProvider builds the configured provider.
func NewProvider(cfg config.ExplainerConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return newAnthropicProvider(cfg)
	case "static":
		return &StaticProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown explainer provider %q", cfg.Provider)
	}
}

// anthropicProvider calls the Anthropic Messages API.
type anthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newAnthropicProvider(cfg config.ExplainerConfig) (*anthropicProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic provider requires an API key")
	}

	return &anthropicProvider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// StaticProvider returns a fixed, well-formed explanation document.
// It exists for deployments without model access and for tests.
type StaticProvider struct{}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) Complete(_ context.Context, _ string) (string, error) {
	return `{
		"summary": "Automated explanation is not configured; review the classified findings directly.",
		"ranked_causes": [],
		"actions": [{"action": "Review the findings list ordered by severity.", "why": "No generative analysis is available in this deployment."}]
	}`, nil
}
