package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	validate := validator.New()

	// Register custom validation for LogLevel
	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		level := strings.ToLower(fl.Field().String())
		switch level {
		case "", "debug", "info", "warn", "error", "fatal", "panic": // Allow empty for omitempty
			return true
		default:
			return false
		}
	})

	// Register custom validation for LogFormat
	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		format := strings.ToLower(fl.Field().String())
		switch format {
		case "", "console", "text", "json": // Allow empty for omitempty
			return true
		default:
			return false
		}
	})

	err := validate.Struct(cfg)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			var msgs []string
			for _, fieldErr := range validationErrors {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' rule (value: '%v')",
					fieldErr.Namespace(), fieldErr.Tag(), fieldErr.Value()))
			}
			return fmt.Errorf("configuration validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Cross-field sanity: the probe must always retain enough budget
	// headroom to issue at least one request.
	if cfg.ProbeConfig.MinRemainingMs >= cfg.ProbeConfig.TotalBudgetMs {
		return fmt.Errorf("probe_config: min_remaining_ms (%d) must be below total_budget_ms (%d)",
			cfg.ProbeConfig.MinRemainingMs, cfg.ProbeConfig.TotalBudgetMs)
	}

	return nil
}
