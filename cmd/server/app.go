package main

import (
	"fmt"
	"log/slog"

	"endpointhub/internal/accounting"
	"endpointhub/internal/config"
	"endpointhub/internal/handlers"
	"endpointhub/internal/handlers/social"
	"endpointhub/internal/observability/logging"
	"endpointhub/internal/observability/metrics"
	"endpointhub/internal/ratelimit"
	"endpointhub/internal/registry"
	"endpointhub/internal/server"
	"endpointhub/internal/serverutil"
)

// app is the fully wired gateway.
type app struct {
	cfg      config.Config
	registry *registry.Registry
	calls    *accounting.Service
	server   *server.Server
}

// loadRegistry builds the catalog and loads it. A malformed module aborts
// startup.
func loadRegistry(cfg config.Config, logger *slog.Logger) (*registry.Registry, error) {
	var reg *registry.Registry
	catalog := handlers.Catalog(handlers.Options{
		GitHub: social.NewGitHubClient(social.Config{
			BaseURL: cfg.Social.GitHubBaseURL,
			Timeout: cfg.Social.Timeout,
		}),
		Routes: func() []registry.Route { return reg.Routes() },
	})

	reg, err := registry.Load(catalog, registry.Options{
		APIPrefix:        cfg.API.Prefix,
		DefaultRateLimit: cfg.RateLimit.DefaultPerMinute,
		Logger:           logging.WithComponent(logger, "registry"),
	})
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	return reg, nil
}

func newApp(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*app, error) {
	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = metrics.Default()
	}
	calls := accounting.New(accounting.Config{
		Retention: cfg.Accounting.Retention,
		Observer:  recorder,
	})

	srv, err := server.New(reg, server.Config{
		Addr: cfg.Server.Addr,
		TLS: serverutil.TLSConfig{
			CertFile: cfg.Server.TLS.CertFile,
			KeyFile:  cfg.Server.TLS.KeyFile,
		},
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetadataPath:    cfg.MetadataRoute(),
		RoleHeader:      cfg.API.RoleHeader,
		DefaultRole:     cfg.API.DefaultRole,
		Logger:          logger,
		Metrics:         recorder,
		Limiter:         ratelimit.New(ratelimit.Config{Window: cfg.RateLimit.Window}),
		Accounting:      calls,
		CORS: server.CORSConfig{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowHeaders:   []string{cfg.API.RoleHeader},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build server: %w", err)
	}
	return &app{cfg: cfg, registry: reg, calls: calls, server: srv}, nil
}
