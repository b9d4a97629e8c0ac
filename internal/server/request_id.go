package server

import (
	"log/slog"
	"net/http"
	"strings"

	"endpointhub/internal/ids"
	"endpointhub/internal/observability/logging"
)

const requestIDHeader = "X-Request-Id"

// maxRequestIDLength caps caller supplied ids before they reach the logs.
const maxRequestIDLength = 128

type idGenerator func() string

// requestIDMiddleware propagates a caller supplied X-Request-Id or mints a
// ULID, echoes it on the response and attaches a request logger carrying it.
func requestIDMiddleware(logger *slog.Logger, generator idGenerator) func(http.Handler) http.Handler {
	if generator == nil {
		generator = ids.NewRequestID
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = generator()
			}

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			ctx = logging.ContextWithLogger(ctx, logging.WithContext(ctx, logger))
			w.Header().Set(requestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
