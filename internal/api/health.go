package api

import (
	"net/http"
)

type componentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components []componentStatus `json:"components"`
}

// HealthHandler reports liveness along with the state of the route table.
type HealthHandler struct {
	RouteCount int
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	overall := "ok"
	status := http.StatusOK
	routes := componentStatus{Component: "routes", Status: "ok"}
	if h.RouteCount == 0 {
		routes.Status = "degraded"
		routes.Error = "no routes loaded"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: overall, Components: []componentStatus{routes}})
}
