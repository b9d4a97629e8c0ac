package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"endpointhub/internal/observability/logging"
)

const (
	invalidJSONMessage    = "Invalid JSON payload"
	internalErrorMessage  = "Internal server error"
	notFoundMessage       = "Not found"
	methodNotAllowedError = "Method not allowed"
)

// ErrorBoundary turns errors escaping the pipeline into JSON responses. Every
// error is logged before anything is written, and bodies never carry stack traces.
type ErrorBoundary struct {
	Logger *slog.Logger
}

// NewErrorBoundary returns a boundary logging through logger, or slog.Default when nil.
func NewErrorBoundary(logger *slog.Logger) *ErrorBoundary {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorBoundary{Logger: logger}
}

type responseStarter interface {
	Written() bool
}

// Handle renders err. Malformed bodies become 400 with a fixed message,
// RequestErrors keep their status, anything else is a 500 with the error
// text as details.
func (b *ErrorBoundary) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	logger := logging.FromRequest(r, b.logger())

	status := http.StatusInternalServerError
	body := errorBody{Error: internalErrorMessage, Details: err.Error()}

	var malformed *MalformedBodyError
	var reqErr RequestError
	switch {
	case errors.As(err, &malformed):
		status = http.StatusBadRequest
		body = errorBody{Error: invalidJSONMessage}
	case errors.As(err, &reqErr):
		status = reqErr.StatusCode()
		body = errorBody{Error: reqErr.Message}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}

	if started, ok := w.(responseStarter); ok && started.Written() {
		return
	}
	writeJSON(w, status, body)
}

// Recover converts panics raised below it into 500 responses through Handle.
func (b *ErrorBoundary) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			b.Handle(w, r, fmt.Errorf("panic: %w", err))
		}()
		next.ServeHTTP(w, r)
	})
}

// NotFound answers unknown routes with the standard error body.
func (b *ErrorBoundary) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: notFoundMessage})
}

// MethodNotAllowed answers known paths requested with the wrong verb.
func (b *ErrorBoundary) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: methodNotAllowedError})
}

func (b *ErrorBoundary) logger() *slog.Logger {
	if b == nil || b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}
