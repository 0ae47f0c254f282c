package config

// WorkflowConfig defines retry behavior for orchestrated steps
type WorkflowConfig struct {
	// Maximum attempts per retryable step
	StepMaxAttempts int `json:"step_max_attempts,omitempty" yaml:"step_max_attempts,omitempty" validate:"omitempty,min=1,max=10"`
	// Base delay in milliseconds between step attempts
	StepBaseDelayMs int `json:"step_base_delay_ms,omitempty" yaml:"step_base_delay_ms,omitempty" validate:"omitempty,min=10,max=60000"`
	// Maximum attempts for the explanation call
	LLMMaxAttempts int `json:"llm_max_attempts,omitempty" yaml:"llm_max_attempts,omitempty" validate:"omitempty,min=1,max=10"`
	// Base delay in seconds for explanation backoff (1s, 2s, 4s, ...)
	LLMBaseDelaySecs int `json:"llm_base_delay_secs,omitempty" yaml:"llm_base_delay_secs,omitempty" validate:"omitempty,min=1,max=60"`
}

// NewDefaultWorkflowConfig creates default workflow configuration
func NewDefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		StepMaxAttempts:  3,
		StepBaseDelayMs:  250,
		LLMMaxAttempts:   3,
		LLMBaseDelaySecs: 1,
	}
}
