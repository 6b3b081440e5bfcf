package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/diewo77/sellhub/httpx"
	"github.com/diewo77/sellhub/internal/idempotency"
	"github.com/diewo77/sellhub/internal/services"
	"github.com/diewo77/sellhub/validation"
)

// writeError maps service errors to the JSON error envelope. Unknown errors
// are logged and reported under code.
func writeError(w http.ResponseWriter, r *http.Request, err error, code string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Violations)
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrOrderNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, idempotency.ErrInProgress):
		httpx.JSONError(w, http.StatusConflict, "request_in_progress", nil)
	case errors.Is(err, idempotency.ErrInvalidKey):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_idempotency_key", nil)
	default:
		slog.ErrorContext(r.Context(), code, "method", r.Method, "path", r.URL.Path, "err", err)
		httpx.JSONError(w, http.StatusInternalServerError, code, nil)
	}
}

// pathID reads a positive integer path parameter, answering 400 when invalid.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}

// decode reads a JSON body, answering 400 invalid_json on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	return true
}
