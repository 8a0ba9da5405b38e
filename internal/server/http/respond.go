package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/casebros/case-engine/internal/errs"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps domain sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrSourceInactive):
		writeError(w, http.StatusConflict, "case is not active")
	case errors.Is(err, errs.ErrNoOutcomes):
		writeError(w, http.StatusConflict, "case has no items")
	case errors.Is(err, errs.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient balance")
	case errors.Is(err, errs.ErrAlreadySold):
		writeError(w, http.StatusConflict, "already sold")
	case errors.Is(err, errs.ErrCooldown):
		writeError(w, http.StatusTooManyRequests, "bonus on cooldown")
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "bad credentials")
	case errors.Is(err, errs.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "username taken")
	case errors.Is(err, errs.ErrPriceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "price unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
