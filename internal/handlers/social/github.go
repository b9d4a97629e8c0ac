// Package social holds the modules that proxy public profile lookups, mounted
// under /social.
package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"endpointhub/internal/api"
	"endpointhub/internal/jsoncodec"
	"endpointhub/internal/pipeline"
	"endpointhub/internal/registry"
)

const (
	Prefix = "/social"

	DefaultGitHubBaseURL = "https://api.github.com"
	DefaultTimeout       = 5 * time.Second

	maxProfileBytes = 1 << 20
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)

var errUserNotFound = errors.New("github user not found")

// Config points the GitHub client at its upstream.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Profile is the subset of the GitHub user document the proxy returns.
type Profile struct {
	Login       string `json:"login"`
	Name        string `json:"name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	HTMLURL     string `json:"html_url"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// GitHubClient fetches user profiles, collapsing concurrent lookups of the
// same username into one upstream request.
type GitHubClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	group   singleflight.Group
}

func NewGitHubClient(cfg Config) *GitHubClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultGitHubBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &GitHubClient{baseURL: baseURL, timeout: timeout, client: client}
}

// Profile looks up username. The upstream call is bounded by the client
// timeout and is shared with concurrent callers, so it is detached from any
// single caller's cancellation; ctx still bounds how long this call waits.
func (c *GitHubClient) Profile(ctx context.Context, username string) (Profile, error) {
	ch := c.group.DoChan(strings.ToLower(username), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetch(fetchCtx, username)
	})
	select {
	case <-ctx.Done():
		return Profile{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Profile{}, res.Err
		}
		return res.Val.(Profile), nil
	}
}

func (c *GitHubClient) fetch(ctx context.Context, username string) (Profile, error) {
	endpoint := c.baseURL + "/users/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "endpointhub")

	resp, err := c.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Profile{}, errUserNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Profile{}, fmt.Errorf("github responded with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return Profile{}, fmt.Errorf("read github response: %w", err)
	}
	var profile Profile
	if err := jsoncodec.Unmarshal(body, &profile); err != nil {
		return Profile{}, fmt.Errorf("decode github response: %w", err)
	}
	return profile, nil
}

// Modules returns the modules of the /social group.
func Modules(client *GitHubClient) []registry.Module {
	if client == nil {
		client = NewGitHubClient(Config{})
	}
	return []registry.Module{
		registry.Func(registry.Descriptor{
			Name:        "GitHub Profile",
			Method:      http.MethodGet,
			Path:        "/github?username=octocat",
			Category:    "Social",
			Description: "Public GitHub profile summary for a username.",
			Params: []registry.Param{
				{Name: "username", Type: registry.ParamString, Required: true},
			},
			RateLimit: 20,
		}, client.handle),
	}
}

func (c *GitHubClient) handle(w http.ResponseWriter, r *http.Request, logger *slog.Logger) error {
	username := strings.TrimSpace(pipeline.ParamsFromContext(r.Context()).String("username"))
	if !usernamePattern.MatchString(username) {
		return api.ValidationError("username is not a valid GitHub login")
	}

	profile, err := c.Profile(r.Context(), username)
	switch {
	case err == nil:
		api.WriteJSON(w, http.StatusOK, profile)
		return nil
	case errors.Is(err, errUserNotFound):
		return api.NotFoundError("GitHub user not found")
	case errors.Is(err, context.Canceled):
		return err
	default:
		logger.Warn("github lookup failed", "username", username, "error", err)
		return api.BadGatewayError("GitHub is unavailable")
	}
}
