package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/aleister1102/envdrift/internal/models"
)

type errorResponse struct {
	Error models.CompareError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, cerr models.CompareError) {
	writeJSON(w, status, errorResponse{Error: cerr})
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, models.CompareError{
		Code:    models.CompareErrInvalidRequest,
		Message: "Comparison not found",
	})
}
