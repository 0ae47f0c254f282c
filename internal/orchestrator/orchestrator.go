// Package orchestrator drives a comparison end to end: create the
// record, probe both sides, diff, explain, and persist the result.
// Each stage runs as a named workflow step, so a retried run converges
// on the same stored state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/envdrift/internal/common/errorwrapper"
	"github.com/aleister1102/envdrift/internal/config"
	"github.com/aleister1102/envdrift/internal/datastore"
	"github.com/aleister1102/envdrift/internal/differ"
	"github.com/aleister1102/envdrift/internal/models"
	"github.com/aleister1102/envdrift/internal/workflow"
)

// Prober runs one active probe. Satisfied by probe.Prober.
type Prober interface {
	Probe(ctx context.Context, comparisonID string, side models.Side, rawURL string, cf *models.CFContext) models.SignalEnvelope
}

// ExplanationService produces one explanation attempt. Satisfied by
// explainer.Explainer.
type ExplanationService interface {
	Explain(ctx context.Context, diff *models.EnvDiff, history []models.Comparison) (*models.Explanation, error)
}

// CompareRequest is the validated input of one comparison run.
type CompareRequest struct {
	ComparisonID string
	PairKey      string
	LeftURL      string
	RightURL     string
	LeftLabel    string
	RightLabel   string
	CreatedAt    int64
	CFContext    *models.CFContext
}

// Orchestrator wires the probe, diff, store, and explanation stages.
type Orchestrator struct {
	stores         *datastore.Manager
	prober         Prober
	differ         *differ.Differ
	explainer      ExplanationService
	workflowConfig config.WorkflowConfig
	historyLimit   int
	logger         zerolog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	stores *datastore.Manager,
	prober Prober,
	d *differ.Differ,
	explanations ExplanationService,
	workflowCfg config.WorkflowConfig,
	storageCfg config.StorageConfig,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		stores:         stores,
		prober:         prober,
		differ:         d,
		explainer:      explanations,
		workflowConfig: workflowCfg,
		historyLimit:   storageCfg.HistoryLimit,
		logger:         logger.With().Str("component", "Orchestrator").Logger(),
	}
}

// Run executes the comparison workflow. Any error that escapes a step
// marks the comparison failed before being returned, so pollers never
// hang on a run that died.
func (o *Orchestrator) Run(ctx context.Context, req CompareRequest) error {
	logger := o.logger.With().Str("comparison_id", req.ComparisonID).Logger()
	runner := workflow.NewRunner(o.workflowConfig, logger)

	store, err := o.stores.StoreFor(req.PairKey)
	if err != nil {
		return fmt.Errorf("failed to open store for pair %s: %w", req.PairKey, err)
	}

	if err := o.run(ctx, runner, store, req, logger); err != nil {
		logger.Error().Err(err).Msg("Comparison workflow failed")
		o.markFailed(store, req.ComparisonID, err)
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, runner *workflow.Runner, store *datastore.PairStore, req CompareRequest, logger zerolog.Logger) error {
	_, err := workflow.Do(ctx, runner, "createComparison", func(ctx context.Context) (bool, error) {
		return true, store.CreateComparison(ctx, models.Comparison{
			ID:        req.ComparisonID,
			CreatedAt: req.CreatedAt,
			LeftURL:   req.LeftURL,
			RightURL:  req.RightURL,
			Status:    models.StatusRunning,
		})
	})
	if err != nil {
		return err
	}

	left, err := workflow.Do(ctx, runner, "probeLeft", func(ctx context.Context) (models.SignalEnvelope, error) {
		return o.prober.Probe(ctx, req.ComparisonID, models.SideLeft, req.LeftURL, req.CFContext), nil
	})
	if err != nil {
		return err
	}
	if _, err := workflow.Do(ctx, runner, "saveLeftProbe", func(ctx context.Context) (bool, error) {
		return true, store.SaveProbe(ctx, &left)
	}); err != nil {
		return err
	}

	right, err := workflow.Do(ctx, runner, "probeRight", func(ctx context.Context) (models.SignalEnvelope, error) {
		return o.prober.Probe(ctx, req.ComparisonID, models.SideRight, req.RightURL, req.CFContext), nil
	})
	if err != nil {
		return err
	}
	if _, err := workflow.Do(ctx, runner, "saveRightProbe", func(ctx context.Context) (bool, error) {
		return true, store.SaveProbe(ctx, &right)
	}); err != nil {
		return err
	}

	// Local and deterministic; retrying it cannot change the outcome.
	diff, err := o.differ.Compute(&left, &right)
	if err != nil {
		return err
	}

	// History is context, not correctness: a read failure degrades the
	// explanation instead of failing the comparison.
	history, err := store.GetComparisonsForHistory(ctx, o.historyLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("History unavailable; explaining without it")
		history = nil
	}

	explanation, err := o.explain(ctx, runner, diff, history, logger)
	if err != nil {
		return err
	}

	result := &models.CompareResult{
		ComparisonID: req.ComparisonID,
		LeftURL:      req.LeftURL,
		RightURL:     req.RightURL,
		LeftLabel:    req.LeftLabel,
		RightLabel:   req.RightLabel,
		Left:         &left,
		Right:        &right,
		Diff:         diff,
		Explanation:  explanation,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := workflow.Do(ctx, runner, "saveResult", func(ctx context.Context) (bool, error) {
		return true, store.SaveResult(ctx, req.ComparisonID, result)
	}); err != nil {
		return err
	}

	logger.Info().
		Str("max_severity", string(diff.MaxSeverity)).
		Int("findings", len(diff.Findings)).
		Msg("Comparison completed")
	return nil
}

// explain retries the model call with 1s/2s/4s backoff. Exhausting
// the attempts is terminal: the caller marks the comparison failed.
func (o *Orchestrator) explain(ctx context.Context, runner *workflow.Runner, diff *models.EnvDiff, history []models.Comparison, logger zerolog.Logger) (*models.Explanation, error) {
	attempts := o.workflowConfig.LLMMaxAttempts
	baseDelay := time.Duration(o.workflowConfig.LLMBaseDelaySecs) * time.Second

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		explanation, err := o.explainer.Explain(ctx, diff, history)
		if err == nil {
			return explanation, nil
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Explanation attempt failed")
		if attempt < attempts {
			if sleepErr := runner.Sleep(ctx, baseDelay<<(attempt-1)); sleepErr != nil {
				break
			}
		}
	}

	return nil, errorwrapper.NewCodedError(string(models.CompareErrInternal),
		fmt.Sprintf("LLM service unavailable after %d attempts", attempts), lastErr)
}

// markFailed records a structured failure. It runs on a fresh context
// because the workflow context may already be cancelled.
func (o *Orchestrator) markFailed(store *datastore.PairStore, comparisonID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cerr := models.CompareError{
		Code:    models.CompareErrorCode(errorwrapper.CodeOf(cause, string(models.CompareErrInternal))),
		Message: "Comparison workflow failed",
		Details: cause.Error(),
	}
	var coded *errorwrapper.CodedError
	if errors.As(cause, &coded) {
		cerr.Message = coded.Message
	}
	if err := store.FailComparison(ctx, comparisonID, cerr); err != nil {
		o.logger.Error().Err(err).Str("comparison_id", comparisonID).Msg("Failed to record comparison failure")
	}
}
