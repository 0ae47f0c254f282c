package config

// ExplainerConfig defines settings for the generative explanation client
type ExplainerConfig struct {
	// Provider name; "anthropic" or "static" (deterministic fallback)
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty" validate:"omitempty,oneof=anthropic static"`
	// Model identifier passed to the provider
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// API key; falls back to ANTHROPIC_API_KEY when empty
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Request timeout in seconds
	TimeoutSecs int `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1,max=300"`
	// Maximum tokens requested from the model
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"omitempty,min=64,max=8192"`
	// Character budget for the serialized findings in the prompt
	MaxFindingsChars int `json:"max_findings_chars,omitempty" yaml:"max_findings_chars,omitempty" validate:"omitempty,min=100"`
	// Character budget for the history summary in the prompt
	MaxHistoryChars int `json:"max_history_chars,omitempty" yaml:"max_history_chars,omitempty" validate:"omitempty,min=100"`
}

// NewDefaultExplainerConfig creates default explainer configuration
func NewDefaultExplainerConfig() ExplainerConfig {
	return ExplainerConfig{
		Provider:         "anthropic",
		Model:            "claude-3-5-haiku-latest",
		TimeoutSecs:      30,
		MaxTokens:        1024,
		MaxFindingsChars: 1500,
		MaxHistoryChars:  800,
	}
}
