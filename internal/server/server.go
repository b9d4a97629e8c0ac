package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"endpointhub/internal/accounting"
	"endpointhub/internal/api"
	"endpointhub/internal/observability/logging"
	"endpointhub/internal/observability/metrics"
	"endpointhub/internal/pipeline"
	"endpointhub/internal/ratelimit"
	"endpointhub/internal/registry"
	"endpointhub/internal/serverutil"
)

const DefaultMetadataPath = "/api/metadata"

var ErrRegistryRequired = errors.New("server: route registry is required")

type Config struct {
	Addr            string
	TLS             serverutil.TLSConfig
	ShutdownTimeout time.Duration

	// MetadataPath is the full path of the introspection endpoint. Requests
	// under it are not counted by call accounting.
	MetadataPath string
	RoleHeader   string
	DefaultRole  string

	Logger     *slog.Logger
	Metrics    *metrics.Recorder
	Limiter    *ratelimit.Limiter
	Accounting *accounting.Service
	Security   SecurityConfig
	CORS       CORSConfig
}

// Server owns the router and the http.Server that serves it.
type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	logger          *slog.Logger
	tls             serverutil.TLSConfig
	shutdownTimeout time.Duration
	calls           *accounting.Service
}

// New mounts every route in reg behind the global middleware. It fails when
// a route would shadow the metadata or operational endpoints.
func New(reg *registry.Registry, cfg Config) (*Server, error) {
	if reg == nil {
		return nil, ErrRegistryRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	calls := cfg.Accounting
	if calls == nil {
		calls = accounting.New(accounting.Config{Observer: recorder})
	}
	metadataPath := "/" + strings.Trim(strings.TrimSpace(cfg.MetadataPath), "/")
	if metadataPath == "/" {
		metadataPath = DefaultMetadataPath
	}
	for _, reserved := range []string{metadataPath, "/healthz", "/metrics"} {
		if _, taken := reg.Lookup(registry.MethodGet, reserved); taken {
			return nil, fmt.Errorf("%w: GET %s is reserved", registry.ErrDuplicateRoute, reserved)
		}
	}
	policy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}

	boundary := api.NewErrorBoundary(logging.WithComponent(logger, "boundary"))
	composer := pipeline.New(pipeline.Config{
		Limiter:     cfg.Limiter,
		Boundary:    boundary,
		Logger:      logger,
		Metrics:     recorder,
		RoleHeader:  cfg.RoleHeader,
		DefaultRole: cfg.DefaultRole,
	})

	r := chi.NewRouter()
	r.Use(
		requestIDMiddleware(logger, nil),
		middleware.RealIP,
		logging.RequestLogger(logging.RequestLoggerConfig{Logger: logging.WithComponent(logger, "http")}),
		func(next http.Handler) http.Handler { return metrics.HTTPMiddleware(recorder, next) },
		securityHeadersMiddleware(cfg.Security),
		corsMiddleware(policy, logger),
		accountingMiddleware(calls, metadataPath),
		boundary.Recover,
	)
	r.NotFound(boundary.NotFound)
	r.MethodNotAllowed(boundary.MethodNotAllowed)

	r.Method(http.MethodGet, "/healthz", api.HealthHandler{RouteCount: reg.Len()})
	r.Method(http.MethodGet, "/metrics", recorder.Handler())
	r.Method(http.MethodGet, metadataPath, api.NewMetadataHandler(reg, calls))

	counts := make(map[string]int)
	for _, route := range reg.Routes() {
		r.Method(string(route.Method), route.Path, composer.Compose(route))
		counts[string(route.Method)]++
	}
	recorder.SetRoutesLoaded(counts)

	srv := &Server{
		handler:         r,
		logger:          logger,
		tls:             cfg.TLS,
		shutdownTimeout: cfg.ShutdownTimeout,
		calls:           calls,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
	return srv, nil
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Accounting returns the call counters the server records into.
func (s *Server) Accounting() *accounting.Service {
	return s.calls
}

// Run serves until ctx is cancelled and then drains in-flight requests.
// onListen, when set, receives the bound address.
func (s *Server) Run(ctx context.Context, onListen func(net.Addr)) error {
	return serverutil.Run(ctx, serverutil.Config{
		Server:          s.httpServer,
		TLS:             s.tls,
		ShutdownTimeout: s.shutdownTimeout,
		Logger:          s.logger,
		OnListen:        onListen,
	})
}
