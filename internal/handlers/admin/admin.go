// Package admin holds the operator-only modules mounted under /admin.
package admin

import (
	"log/slog"
	"net/http"

	"endpointhub/internal/api"
	"endpointhub/internal/registry"
)

const (
	Prefix = "/admin"
	Role   = "admin"
)

// RouteSource yields the loaded route table. It is consulted per request, so
// it may be bound after the catalog has been built.
type RouteSource func() []registry.Route

type routeSummary struct {
	Method    registry.Method `json:"method"`
	Path      string          `json:"path"`
	RateLimit int             `json:"rateLimit"`
	Roles     []string        `json:"roles,omitempty"`
}

type routesResponse struct {
	Count  int            `json:"count"`
	Routes []routeSummary `json:"routes"`
}

// Modules returns the modules of the /admin group.
func Modules(routes RouteSource) []registry.Module {
	return []registry.Module{
		registry.Func(registry.Descriptor{
			Name:        "Route Table",
			Method:      http.MethodGet,
			Path:        "/routes",
			Category:    "Admin",
			Description: "Flat listing of every registered route.",
			Roles:       []string{Role},
		}, func(w http.ResponseWriter, _ *http.Request, _ *slog.Logger) error {
			var loaded []registry.Route
			if routes != nil {
				loaded = routes()
			}
			resp := routesResponse{Count: len(loaded), Routes: make([]routeSummary, 0, len(loaded))}
			for _, route := range loaded {
				resp.Routes = append(resp.Routes, routeSummary{
					Method:    route.Method,
					Path:      route.Path,
					RateLimit: route.RateLimit,
					Roles:     route.Roles,
				})
			}
			api.WriteJSON(w, http.StatusOK, resp)
			return nil
		}),
	}
}
