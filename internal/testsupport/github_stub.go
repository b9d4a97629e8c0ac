package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// GitHubStub is an in-memory stand-in for the GitHub users API.
type GitHubStub struct {
	Server *httptest.Server

	mu     sync.RWMutex
	users  map[string]map[string]any
	status int
	hits   atomic.Int64
	gate   chan struct{}
}

// NewGitHubStub starts the stub; it is closed when the test ends.
func NewGitHubStub(t testing.TB) *GitHubStub {
	t.Helper()
	stub := &GitHubStub{users: make(map[string]map[string]any)}
	stub.Server = httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(stub.Server.Close)
	return stub
}

// Seed registers a user document under login.
func (s *GitHubStub) Seed(login string, doc map[string]any) {
	s.mu.Lock()
	s.users[strings.ToLower(login)] = doc
	s.mu.Unlock()
}

// FailWith makes every lookup answer with status.
func (s *GitHubStub) FailWith(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Hold blocks lookups until the returned release func is called.
func (s *GitHubStub) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Hits reports how many lookups reached the stub.
func (s *GitHubStub) Hits() int64 {
	return s.hits.Load()
}

func (s *GitHubStub) serve(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	s.mu.RLock()
	gate, status := s.gate, s.status
	s.mu.RUnlock()
	if gate != nil {
		<-gate
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	login, ok := strings.CutPrefix(r.URL.Path, "/users/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.mu.RLock()
	doc, found := s.users[strings.ToLower(login)]
	s.mu.RUnlock()
	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}
