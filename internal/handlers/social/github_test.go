package social

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"endpointhub/internal/testsupport"
)

func newStubbedClient(t *testing.T) (*GitHubClient, *testsupport.GitHubStub) {
	t.Helper()
	stub := testsupport.NewGitHubStub(t)
	stub.Seed("octocat", map[string]any{
		"login":        "octocat",
		"name":         "The Octocat",
		"public_repos": 8,
		"followers":    100,
		"html_url":     "https://github.com/octocat",
		"site_admin":   false,
	})
	return NewGitHubClient(Config{BaseURL: stub.Server.URL + "/", Timeout: time.Second}), stub
}

func TestGitHubProfileProxy(t *testing.T) {
	client, _ := newStubbedClient(t)
	h := testsupport.NewHarness(t, Prefix, Modules(client)...)

	rec := h.Do(t, http.MethodGet, "/api/social/github?username=OctoCat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var profile map[string]any
	testsupport.DecodeJSON(t, rec, &profile)
	if profile["login"] != "octocat" || profile["public_repos"] != float64(8) {
		t.Fatalf("unexpected profile %#v", profile)
	}
	if _, leaked := profile["site_admin"]; leaked {
		t.Fatal("expected only the summarised fields")
	}
}

func TestGitHubProfileErrors(t *testing.T) {
	client, stub := newStubbedClient(t)
	h := testsupport.NewHarness(t, Prefix, Modules(client)...)

	if rec := h.Do(t, http.MethodGet, "/api/social/github?username=ghost", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
	if rec := h.Do(t, http.MethodGet, "/api/social/github?username=bad%20name", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid login, got %d", rec.Code)
	}
	if rec := h.Do(t, http.MethodGet, "/api/social/github", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without username, got %d", rec.Code)
	}

	stub.FailWith(http.StatusServiceUnavailable)
	rec := h.Do(t, http.MethodGet, "/api/social/github?username=octocat", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on upstream failure, got %d", rec.Code)
	}
	var body map[string]string
	testsupport.DecodeJSON(t, rec, &body)
	if body["error"] != "GitHub is unavailable" {
		t.Fatalf("unexpected error body %#v", body)
	}
}

func TestGitHubProfileCollapsesConcurrentLookups(t *testing.T) {
	client, stub := newStubbedClient(t)
	release := stub.Hold()

	const callers = 5
	var (
		wg     sync.WaitGroup
		errs   = make(chan error, callers)
		logins = make(chan string, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			profile, err := client.Profile(context.Background(), "octocat")
			if err != nil {
				errs <- err
				return
			}
			logins <- profile.Login
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for stub.Hits() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Give the remaining callers time to join the in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()
	close(errs)
	close(logins)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(logins); n != callers {
		t.Fatalf("expected %d results, got %d", callers, n)
	}
	if hits := stub.Hits(); hits != 1 {
		t.Fatalf("expected a single upstream request, got %d", hits)
	}
}

func TestGitHubProfileHonoursCallerCancellation(t *testing.T) {
	client, stub := newStubbedClient(t)
	release := stub.Hold()
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Profile(ctx, "octocat"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
