package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fsanano/storefront/internal/repository"
	"fsanano/storefront/internal/service"
)

// envelope is the response body shared by every endpoint:
// {"success": bool, "message": "...", ...payload}.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func writeOK(w http.ResponseWriter, message string, payload envelope) {
	if payload == nil {
		payload = envelope{}
	}
	payload["success"] = true
	if message != "" {
		payload["message"] = message
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "message": message})
}

// writeError maps domain errors to status codes. Unknown errors are logged and
// reported as a generic internal error.
func (h *ShopHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		writeFail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrNegativeInventory):
		writeFail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInsufficientInventory),
		errors.Is(err, service.ErrInsufficientDeposit),
		errors.Is(err, repository.ErrUsernameTaken):
		writeFail(w, http.StatusConflict, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeFail(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
