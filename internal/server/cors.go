package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"endpointhub/internal/api"
)

const corsAllowHeaders = "Content-Type, X-Request-Id"

// CORSConfig lists the browser origins allowed to call the gateway. "*"
// admits any origin. An empty list leaves CORS handling off entirely.
type CORSConfig struct {
	AllowedOrigins []string
	// AllowHeaders is appended to the default preflight header list, e.g. the
	// role header.
	AllowHeaders []string
}

type corsPolicy struct {
	any          bool
	allowed      map[string]struct{}
	allowHeaders string
}

func newCORSPolicy(cfg CORSConfig) (*corsPolicy, error) {
	if len(cfg.AllowedOrigins) == 0 {
		return nil, nil
	}
	policy := &corsPolicy{allowed: make(map[string]struct{}), allowHeaders: corsAllowHeaders}
	for _, origin := range cfg.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			policy.any = true
			continue
		}
		normalized, err := normalizeOrigin(origin)
		if err != nil {
			return nil, fmt.Errorf("parse origin %q: %w", origin, err)
		}
		if normalized != "" {
			policy.allowed[normalized] = struct{}{}
		}
	}
	for _, header := range cfg.AllowHeaders {
		if header = strings.TrimSpace(header); header != "" {
			policy.allowHeaders += ", " + header
		}
	}
	return policy, nil
}

func normalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", nil
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("origin must include scheme and host")
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), nil
}

func (p *corsPolicy) allows(origin string, r *http.Request) bool {
	if p.any {
		return true
	}
	normalized, err := normalizeOrigin(origin)
	if err != nil || normalized == "" {
		return false
	}
	if _, ok := p.allowed[normalized]; ok {
		return true
	}
	return normalized == originForRequest(r)
}

func originForRequest(r *http.Request) string {
	host := strings.ToLower(strings.TrimSpace(r.Host))
	if host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + host
}

// corsMiddleware answers preflight requests itself, ahead of routing, and
// rejects cross-origin requests from origins outside the policy.
func corsMiddleware(policy *corsPolicy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if policy == nil {
			return next
		}
		if logger == nil {
			logger = slog.Default()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			header := w.Header()
			header.Add("Vary", "Origin")
			if !policy.allows(origin, r) {
				logger.Warn("blocked cors origin", "origin", origin, "path", r.URL.Path)
				api.WriteRequestError(w, api.ForbiddenError("Origin not allowed"))
				return
			}

			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Expose-Headers", "Retry-After, X-Request-Id, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE")
				header.Set("Access-Control-Allow-Headers", policy.allowHeaders)
				header.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
