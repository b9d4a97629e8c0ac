package api

import (
	"net/http"

	"endpointhub/internal/accounting"
	"endpointhub/internal/registry"
)

// MetadataResponse is the payload served by the introspection endpoint.
type MetadataResponse struct {
	Categories map[string][]registry.Route `json:"categories"`
	Stats      MetadataStats               `json:"stats"`
}

// MetadataStats summarises the route table and the call counters.
type MetadataStats struct {
	TotalAPIs int                 `json:"totalApis"`
	GetAPIs   int                 `json:"getApis"`
	PostAPIs  int                 `json:"postApis"`
	APICalls  accounting.Snapshot `json:"apiCalls"`
}

// MetadataHandler serves the categorised route table with live call stats.
// Everything except the call counters is computed once at construction.
type MetadataHandler struct {
	categories map[string][]registry.Route
	total      int
	getCount   int
	postCount  int
	calls      *accounting.Service
}

func NewMetadataHandler(reg *registry.Registry, calls *accounting.Service) *MetadataHandler {
	counts := reg.CountByMethod()
	return &MetadataHandler{
		categories: reg.ByCategory(),
		total:      reg.Len(),
		getCount:   counts[registry.MethodGet],
		postCount:  counts[registry.MethodPost],
		calls:      calls,
	}
}

// Snapshot assembles the response without writing it.
func (h *MetadataHandler) Snapshot() MetadataResponse {
	var calls accounting.Snapshot
	if h.calls != nil {
		calls = h.calls.Snapshot()
	}
	return MetadataResponse{
		Categories: h.categories,
		Stats: MetadataStats{
			TotalAPIs: h.total,
			GetAPIs:   h.getCount,
			PostAPIs:  h.postCount,
			APICalls:  calls,
		},
	}
}

func (h *MetadataHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot())
}
