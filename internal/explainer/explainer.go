// Package explainer turns a classified diff into a human-readable
// explanation using a generative model behind a small provider
// interface.
package explainer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/envdrift/internal/common/errorwrapper"
	"github.com/aleister1102/envdrift/internal/config"
	"github.com/aleister1102/envdrift/internal/models"
)

// Explainer requests and validates explanations for computed diffs.
type Explainer struct {
	provider Provider
	config   config.ExplainerConfig
	logger   zerolog.Logger
}

// NewExplainer creates an explainer around a provider.
func NewExplainer(provider Provider, cfg config.ExplainerConfig, logger zerolog.Logger) *Explainer {
	return &Explainer{
		provider: provider,
		config:   cfg,
		logger:   logger.With().Str("component", "Explainer").Logger(),
	}
}

// Explain requests one explanation for the diff. History provides
// recency context and may be empty. Any provider, parse, or
// validation failure is returned as an error; retry policy belongs to
// the caller.
func (e *Explainer) Explain(ctx context.Context, diff *models.EnvDiff, history []models.Comparison) (*models.Explanation, error) {
	prompt := buildPrompt(diff, history, e.config.MaxFindingsChars, e.config.MaxHistoryChars)

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.TimeoutSecs)*time.Second)
	defer cancel()

	raw, err := e.provider.Complete(callCtx, prompt)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "explanation provider "+e.provider.Name())
	}

	explanation, err := parseExplanation(raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("provider", e.provider.Name()).Msg("Model output failed validation")
		return nil, err
	}

	e.logger.Debug().
		Str("comparison_id", diff.ComparisonID).
		Int("ranked_causes", len(explanation.RankedCauses)).
		Msg("Explanation produced")
	return explanation, nil
}
