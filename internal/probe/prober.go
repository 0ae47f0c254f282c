// Package probe issues safe, SSRF-hardened active probes and folds
// every outcome into a well-formed SignalEnvelope. Probe never
// panics and never returns an error: failures are data.
package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aleister1102/envdrift/internal/config"
	"github.com/aleister1102/envdrift/internal/httpclient"
	"github.com/aleister1102/envdrift/internal/models"
	"github.com/aleister1102/envdrift/internal/urlcheck"
	"github.com/rs/zerolog"
)

// Prober executes active probes against a single URL at a time.
type Prober struct {
	config config.ProbeConfig
	client *httpclient.HTTPClient
	logger zerolog.Logger
}

// NewProber creates a prober with its own transport.
func NewProber(cfg config.ProbeConfig, logger zerolog.Logger) (*Prober, error) {
	clientCfg := httpclient.DefaultHTTPClientConfig()
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.MaxReadBytes = 0
	if cfg.HashBody {
		clientCfg.MaxReadBytes = cfg.MaxBodyBytes
	}
	// The per-request budget context governs cancellation; the client
	// timeout only acts as a backstop.
	clientCfg.Timeout = time.Duration(cfg.TotalBudgetMs)*time.Millisecond + time.Second

	client, err := httpclient.NewHTTPClient(clientCfg, logger)
	if err != nil {
		return nil, err
	}

	return &Prober{
		config: cfg,
		client: client,
		logger: logger.With().Str("component", "Prober").Logger(),
	}, nil
}

// Probe validates the URL, walks redirects under the time budget, and
// returns the envelope for one side of a comparison.
func (p *Prober) Probe(ctx context.Context, comparisonID string, side models.Side, rawURL string, cf *models.CFContext) (envelope models.SignalEnvelope) {
	cf = withContextDefaults(cf)

	// Fold any unexpected panic into an unknown_error envelope; the
	// pipeline depends on the probe never throwing.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("url", rawURL).Msg("Probe panicked")
			envelope = models.NewSignalEnvelope(comparisonID, side, rawURL, cf,
				models.NewNetworkFailureResult(models.ProbeErrUnknown, "internal probe failure", fmt.Sprint(r), nil))
		}
	}()

	if res := urlcheck.Validate(rawURL); !res.OK {
		code := urlcheck.MapReason(res.Reason)
		p.logger.Warn().Str("url", rawURL).Str("reason", res.Reason).Msg("Probe URL rejected")
		return models.NewSignalEnvelope(comparisonID, side, rawURL, cf,
			models.NewNetworkFailureResult(code, "URL rejected by validation", res.Reason, nil))
	}

	budget := NewBudget(ctx, time.Duration(p.config.TotalBudgetMs)*time.Millisecond,
		time.Duration(p.config.MinRemainingMs)*time.Millisecond)
	defer budget.Release()

	walker := &redirectWalker{
		client:       p.client,
		maxRedirects: p.config.MaxRedirects,
		logger:       p.logger,
	}

	outcome, walkErr := walker.walk(budget, rawURL)
	durationMs := budget.ElapsedMs()

	if walkErr != nil {
		p.logger.Debug().
			Str("url", rawURL).
			Str("code", string(walkErr.code)).
			Str("message", walkErr.message).
			Msg("Probe failed")
		d := durationMs
		return models.NewSignalEnvelope(comparisonID, side, rawURL, cf,
			models.NewNetworkFailureResult(walkErr.code, walkErr.message, walkErr.details, &d))
	}

	response := p.buildResponseMetadata(outcome)
	var result models.ProbeResult
	if outcome.response.StatusCode >= 400 {
		result = models.NewResponseErrorResult(response, outcome.hops, durationMs)
	} else {
		result = models.NewSuccessResult(response, outcome.hops, durationMs)
	}

	p.logger.Debug().
		Str("url", rawURL).
		Int("status", response.Status).
		Int("redirects", len(outcome.hops)).
		Int64("duration_ms", durationMs).
		Msg("Probe completed")

	return models.NewSignalEnvelope(comparisonID, side, rawURL, cf, result)
}

// buildResponseMetadata normalizes the terminal response of a walk.
func (p *Prober) buildResponseMetadata(outcome *walkOutcome) *models.ResponseMetadata {
	resp := outcome.response

	finalURL := resp.EffectiveURL
	if finalURL == "" {
		finalURL = outcome.lastURL
	}

	meta := &models.ResponseMetadata{
		Status:        resp.StatusCode,
		FinalURL:      finalURL,
		Headers:       NormalizeHeaders(resp.Headers),
		ContentLength: parseContentLength(resp.Headers),
	}

	if meta.ContentLength == nil && len(resp.Body) > 0 {
		n := int64(len(resp.Body))
		meta.ContentLength = &n
	}

	if p.config.HashBody && len(resp.Body) > 0 {
		sum := sha256.Sum256(resp.Body)
		meta.BodyHash = hex.EncodeToString(sum[:])
	}

	return meta
}

// withContextDefaults fills the execution-context snapshot with the
// local defaults when the runtime provides none.
func withContextDefaults(cf *models.CFContext) *models.CFContext {
	if cf == nil {
		return &models.CFContext{Colo: models.DefaultColo, Country: models.DefaultCountry}
	}
	out := *cf
	if out.Colo == "" {
		out.Colo = models.DefaultColo
	}
	if out.Country == "" {
		out.Country = models.DefaultCountry
	}
	return &out
}
