// Package testsupport provides helpers for exercising handler modules through
// the real loader and pipeline without starting a server.
package testsupport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"endpointhub/internal/observability/metrics"
	"endpointhub/internal/pipeline"
	"endpointhub/internal/registry"
)

// Harness routes requests to modules loaded under a single group prefix.
type Harness struct {
	Registry *registry.Registry
	mux      *http.ServeMux
}

// NewHarness loads modules under prefix and composes each through the full
// pipeline with a private metrics registry and a discarded log.
func NewHarness(t testing.TB, prefix string, modules ...registry.Module) *Harness {
	t.Helper()
	reg, err := registry.Load(registry.Group{Groups: []registry.Group{{Prefix: prefix, Modules: modules}}}, registry.Options{})
	if err != nil {
		t.Fatalf("load modules: %v", err)
	}
	composer := pipeline.New(pipeline.Config{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: metrics.New(),
	})
	mux := http.NewServeMux()
	for _, route := range reg.Routes() {
		mux.Handle(string(route.Method)+" "+route.Path, composer.Compose(route))
	}
	return &Harness{Registry: reg, mux: mux}
}

// Do serves one request. A url.Values body is sent form-encoded; any other
// non-nil body is encoded as JSON.
func (h *Harness) Do(t testing.TB, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var (
		reader      io.Reader
		contentType string
	)
	switch typed := body.(type) {
	case nil:
	case url.Values:
		reader = strings.NewReader(typed.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

// DecodeJSON unmarshals the recorded body into dest.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
