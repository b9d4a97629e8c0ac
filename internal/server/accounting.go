package server

import (
	"net/http"
	"strings"

	"endpointhub/internal/accounting"
)

// accountingMiddleware counts every request before dispatch, including ones
// that are later rejected or unmatched. Requests under the metadata path are
// exempt so polling the stats does not inflate them.
func accountingMiddleware(calls *accounting.Service, exemptPrefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, exemptPrefix) {
				calls.Record()
			}
			next.ServeHTTP(w, r)
		})
	}
}
