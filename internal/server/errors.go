package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Micheline922/kairo/internal/auth"
	"github.com/Micheline922/kairo/internal/devotion"
	"github.com/Micheline922/kairo/internal/flow"
	"github.com/Micheline922/kairo/internal/gemini"
	"github.com/Micheline922/kairo/internal/lock"
	"github.com/Micheline922/kairo/internal/store"
)

// errBadRequest marks malformed request bodies and parameters
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to an HTTP status. fallback is used for errors
// with no specific mapping.
func statusFor(err error, fallback int) int {
	var flowErr *flow.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &flowErr), errors.As(err, &fieldErrs),
		errors.Is(err, errBadRequest), errors.Is(err, devotion.ErrInvalidProgress):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusForbidden
	case errors.Is(err, flow.ErrUnknownFlow), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, gemini.ErrSchemaMismatch), errors.Is(err, gemini.ErrEmptyResponse),
		errors.Is(err, flow.ErrNoAudio), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	}
	return fallback
}

// writeError writes err as {"error": "..."} with the mapped status.
// Validation failures also list the offending fields.
func (h *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	status := statusFor(err, fallback)
	body := map[string]interface{}{"error": err.Error()}

	var flowErr *flow.ValidationError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &flowErr) && len(flowErr.Fields) > 0:
		body["fields"] = flowErr.Fields
	case errors.As(err, &fieldErrs):
		fields := make([]flow.FieldError, len(fieldErrs))
		for i, fe := range fieldErrs {
			fields[i] = flow.FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()}
		}
		body["fields"] = fields
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		if status == http.StatusInternalServerError {
			body["error"] = "internal server error"
		}
	}

	writeJSON(w, status, body)
}
