package config

// ProbeConfig defines settings for the active probe
type ProbeConfig struct {
	// Total wall-clock budget per probed URL in milliseconds
	TotalBudgetMs int `json:"total_budget_ms,omitempty" yaml:"total_budget_ms,omitempty" validate:"omitempty,min=100,max=60000"`
	// Minimum remaining budget required before scheduling more work
	MinRemainingMs int `json:"min_remaining_ms,omitempty" yaml:"min_remaining_ms,omitempty" validate:"omitempty,min=10,max=5000"`
	// Maximum number of redirect hops followed manually
	MaxRedirects int `json:"max_redirects,omitempty" yaml:"max_redirects,omitempty" validate:"omitempty,min=0,max=30"`
	// Hash response bodies with sha256 for content comparison
	HashBody bool `json:"hash_body" yaml:"hash_body"`
	// Maximum number of body bytes read for hashing
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty" validate:"omitempty,min=1024"`
	// User agent presented to probed endpoints
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// NewDefaultProbeConfig creates default probe configuration
func NewDefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		TotalBudgetMs:  9000,
		MinRemainingMs: 100,
		MaxRedirects:   10,
		HashBody:       true,
		MaxBodyBytes:   4 * 1024 * 1024,
		UserAgent:      "envdrift-probe/1.0",
	}
}
