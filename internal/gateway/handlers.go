package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aleister1102/envdrift/internal/models"
	"github.com/aleister1102/envdrift/internal/orchestrator"
	"github.com/aleister1102/envdrift/internal/urlcheck"
)

// compareRequest is the wire form of a start request. Field names
// follow the public API contract, not the storage convention.
type compareRequest struct {
	LeftURL    string `json:"leftUrl"`
	RightURL   string `json:"rightUrl"`
	LeftLabel  string `json:"leftLabel,omitempty"`
	RightLabel string `json:"rightLabel,omitempty"`
}

type startResponse struct {
	ComparisonID string `json:"comparisonId"`
}

type pollResponse struct {
	ComparisonID string               `json:"comparisonId"`
	Status       string               `json:"status"`
	Result       json.RawMessage      `json:"result,omitempty"`
	Error        *models.CompareError `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleStartCompare validates both URLs, persists nothing itself,
// and hands the run to the orchestrator in the background. The 202
// carries the id the client polls with.
func (s *Server) handleStartCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.CompareError{
			Code:    models.CompareErrInvalidRequest,
			Message: "Request body must be a JSON object",
			Details: err.Error(),
		})
		return
	}

	if req.LeftURL == "" || req.RightURL == "" {
		writeError(w, http.StatusBadRequest, models.CompareError{
			Code:    models.CompareErrInvalidRequest,
			Message: "leftUrl and rightUrl are required",
		})
		return
	}

	if cerr := validateCompareURL("leftUrl", req.LeftURL); cerr != nil {
		writeError(w, http.StatusBadRequest, *cerr)
		return
	}
	if cerr := validateCompareURL("rightUrl", req.RightURL); cerr != nil {
		writeError(w, http.StatusBadRequest, *cerr)
		return
	}

	fingerprint := models.PairFingerprint(req.LeftURL, req.RightURL)
	comparisonID := models.NewComparisonID(fingerprint)
	pairKey, ok := models.PairKeyFromComparisonID(comparisonID)
	if !ok {
		writeError(w, http.StatusInternalServerError, models.CompareError{
			Code:    models.CompareErrInternal,
			Message: "Failed to mint comparison id",
		})
		return
	}

	run := orchestrator.CompareRequest{
		ComparisonID: comparisonID,
		PairKey:      pairKey,
		LeftURL:      req.LeftURL,
		RightURL:     req.RightURL,
		LeftLabel:    req.LeftLabel,
		RightLabel:   req.RightLabel,
		CreatedAt:    time.Now().UnixMilli(),
	}

	// The workflow outlives the HTTP request; stale detection in the
	// store covers runs lost to a crash.
	go func() {
		if err := s.runner.Run(context.Background(), run); err != nil {
			s.logger.Error().Err(err).Str("comparison_id", comparisonID).Msg("Comparison run failed")
		}
	}()

	s.logger.Info().
		Str("comparison_id", comparisonID).
		Str("left_url", req.LeftURL).
		Str("right_url", req.RightURL).
		Msg("Comparison accepted")
	writeJSON(w, http.StatusAccepted, startResponse{ComparisonID: comparisonID})
}

// handlePollCompare routes the id to its pair store and reports the
// lifecycle state.
func (s *Server) handlePollCompare(w http.ResponseWriter, r *http.Request) {
	comparisonID := chi.URLParam(r, "comparisonID")

	pairKey, ok := models.PairKeyFromComparisonID(comparisonID)
	if !ok {
		writeNotFound(w)
		return
	}

	store, err := s.stores.StoreFor(pairKey)
	if err != nil {
		s.logger.Error().Err(err).Str("pair_key", pairKey).Msg("Failed to open pair store")
		writeError(w, http.StatusInternalServerError, models.CompareError{
			Code:    models.CompareErrInternal,
			Message: "Failed to access comparison state",
		})
		return
	}

	cmp, err := store.GetComparison(r.Context(), comparisonID)
	if err != nil {
		s.logger.Error().Err(err).Str("comparison_id", comparisonID).Msg("Failed to load comparison")
		writeError(w, http.StatusInternalServerError, models.CompareError{
			Code:    models.CompareErrInternal,
			Message: "Failed to load comparison",
		})
		return
	}
	if cmp == nil {
		writeNotFound(w)
		return
	}

	resp := pollResponse{
		ComparisonID: cmp.ID,
		Status:       string(cmp.Status),
	}
	switch cmp.Status {
	case models.StatusCompleted:
		resp.Result = cmp.Result
	case models.StatusFailed:
		resp.Error = cmp.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// validateCompareURL maps a validation rejection to the API error
// contract, naming the offending field.
func validateCompareURL(field, rawURL string) *models.CompareError {
	result := urlcheck.Validate(rawURL)
	if result.OK {
		return nil
	}
	return &models.CompareError{
		Code:    models.CompareErrorCode(urlcheck.MapReason(result.Reason)),
		Message: fmt.Sprintf("Invalid %s: %s", field, result.Reason),
	}
}
