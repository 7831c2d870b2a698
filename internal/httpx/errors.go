package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors onto HTTP. Internal errors already carry no
// detail by the time they get here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assets.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, assets.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assets.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, assets.ErrInvalidState):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	body := map[string]any{"error": err.Error()}
	if code == http.StatusConflict {
		w.Header().Set("Retry-After", "1")
		body["retryable"] = true
	}
	if code == http.StatusInternalServerError {
		body["error"] = assets.ErrInternal.Error()
	}
	writeJSON(w, code, body)
}
