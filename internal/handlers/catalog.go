// Package handlers assembles the module catalog served by endpointhub. Each
// sub-package is one group of the catalog, mounted under its own prefix.
package handlers

import (
	"endpointhub/internal/handlers/admin"
	"endpointhub/internal/handlers/echo"
	"endpointhub/internal/handlers/random"
	"endpointhub/internal/handlers/social"
	"endpointhub/internal/handlers/text"
	"endpointhub/internal/registry"
)

// Options carries the collaborators individual groups need.
type Options struct {
	GitHub *social.GitHubClient
	Random random.Source
	Routes admin.RouteSource
}

// Catalog returns the module tree in registration order.
func Catalog(opts Options) registry.Group {
	return registry.Group{
		Groups: []registry.Group{
			{Prefix: echo.Prefix, Modules: echo.Modules()},
			{Prefix: text.Prefix, Modules: text.Modules()},
			{Prefix: random.Prefix, Modules: random.Modules(opts.Random)},
			{Prefix: social.Prefix, Modules: social.Modules(opts.GitHub)},
			{Prefix: admin.Prefix, Modules: admin.Modules(opts.Routes)},
		},
	}
}
