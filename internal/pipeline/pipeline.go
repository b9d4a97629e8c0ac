// Package pipeline composes the per-route request chain. Every route gets the
// same four stages in a fixed order:
//
//	rate limit -> authorize -> validate -> invoke
//
// A stage that rejects a request answers it directly and the later stages
// never run. Only the invoke stage hands errors to the api.ErrorBoundary,
// except for unparseable request bodies which the validator forwards there too.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"endpointhub/internal/api"
	"endpointhub/internal/observability/logging"
	"endpointhub/internal/observability/metrics"
	"endpointhub/internal/ratelimit"
	"endpointhub/internal/registry"
)

const (
	DefaultRoleHeader = "X-User-Role"
	DefaultRole       = "user"

	StageRateLimit = "ratelimit"
	StageAuthorize = "authorize"
	StageValidate  = "validate"

	tooManyRequestsMessage = "Too many requests, please try again later."
	forbiddenMessage       = "Unauthorized: Role not permitted"

	tracerName = "endpointhub/pipeline"
)

var errNoResponse = errors.New("handler returned without writing a response")

// Config carries the collaborators shared by every composed route.
type Config struct {
	Limiter     *ratelimit.Limiter
	Boundary    *api.ErrorBoundary
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
	RoleHeader  string
	DefaultRole string
}

// Composer builds route handlers from a shared Config.
type Composer struct {
	limiter     *ratelimit.Limiter
	boundary    *api.ErrorBoundary
	logger      *slog.Logger
	metrics     *metrics.Recorder
	roleHeader  string
	defaultRole string
}

// New fills unset collaborators with working defaults.
func New(cfg Config) *Composer {
	c := &Composer{
		limiter:     cfg.Limiter,
		boundary:    cfg.Boundary,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		roleHeader:  strings.TrimSpace(cfg.RoleHeader),
		defaultRole: strings.TrimSpace(cfg.DefaultRole),
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(ratelimit.Config{})
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.boundary == nil {
		c.boundary = api.NewErrorBoundary(c.logger)
	}
	if c.metrics == nil {
		c.metrics = metrics.Default()
	}
	if c.roleHeader == "" {
		c.roleHeader = DefaultRoleHeader
	}
	if c.defaultRole == "" {
		c.defaultRole = DefaultRole
	}
	return c
}

// Compose returns the full chain for route.
func (c *Composer) Compose(route registry.Route) http.Handler {
	chain := c.invoke(route)
	chain = c.validate(route, chain)
	chain = c.authorize(route, chain)
	chain = c.rateLimit(route, chain)
	return c.scope(route, chain)
}

// scope attaches the route name and a route-scoped logger to the context.
func (c *Composer) scope(route registry.Route, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithRoute(r.Context(), route.Name)
		logger := logging.WithContext(ctx, c.logger).With("path", route.Path)
		ctx = logging.ContextWithLogger(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *Composer) rateLimit(route registry.Route, next http.Handler) http.Handler {
	prefix := string(route.Method) + " " + route.Path + "|"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := c.limiter.Allow(prefix+ClientKey(r), route.RateLimit)
		header := w.Header()
		header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.ResetAt.IsZero() {
			header.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}
		if !decision.Allowed {
			header.Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
			c.reject(w, r, route, StageRateLimit, http.StatusTooManyRequests, tooManyRequestsMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Composer) authorize(route registry.Route, next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(route.Roles))
	for _, role := range route.Roles {
		allowed[role] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := strings.TrimSpace(r.Header.Get(c.roleHeader))
		if role == "" {
			role = c.defaultRole
		}
		if len(allowed) > 0 {
			if _, ok := allowed[role]; !ok {
				c.reject(w, r, route, StageAuthorize, http.StatusForbidden, forbiddenMessage)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(contextWithRole(r.Context(), role)))
	})
}

func (c *Composer) validate(route registry.Route, next http.Handler) http.Handler {
	required := route.RequiredParams()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var values Values
		if route.Method.ReadsQuery() {
			values = valuesFromQuery(r.URL.Query())
		} else {
			payload, err := api.DecodeRequestObject(r)
			if err != nil {
				c.metrics.ObserveRejection(route.Name, StageValidate)
				c.boundary.Handle(w, r, err)
				return
			}
			values = Values(payload)
		}

		missing := values.Missing(required)
		if len(missing) > 0 {
			messages := make([]string, len(missing))
			for i, name := range missing {
				messages[i] = "Missing required parameter: " + name
			}
			c.reject(w, r, route, StageValidate, http.StatusBadRequest, strings.Join(messages, ", "))
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithParams(r.Context(), values)))
	})
}

func (c *Composer) invoke(route registry.Route) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), route.Name)
		defer span.End()
		span.SetAttributes(
			attribute.String("http.request.method", string(route.Method)),
			attribute.String("http.route", route.Path),
			attribute.String("endpointhub.category", route.Category),
		)

		r = r.WithContext(ctx)
		rr := metrics.NewResponseRecorder(w)
		logger := logging.FromRequest(r, c.logger)

		start := time.Now()
		err := route.Module.Handle(rr, r, logger)
		if err == nil && !rr.Written() {
			err = fmt.Errorf("%s: %w", route.Name, errNoResponse)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.boundary.Handle(rr, r, err)
			return
		}
		logger.Debug("handler completed", "status", rr.Status(), "duration_ms", time.Since(start).Milliseconds())
	})
}

func (c *Composer) reject(w http.ResponseWriter, r *http.Request, route registry.Route, stage string, status int, message string) {
	c.metrics.ObserveRejection(route.Name, stage)
	logging.FromRequest(r, c.logger).Warn("request rejected",
		"stage", stage,
		"status", status,
		"reason", message)
	api.WriteError(w, status, errors.New(message))
}

// ClientKey identifies the caller for rate limiting. It expects RemoteAddr to
// have been resolved already (chi's RealIP middleware runs ahead of routing).
func ClientKey(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
