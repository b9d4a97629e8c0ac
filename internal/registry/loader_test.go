package registry

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

func noop(w http.ResponseWriter, _ *http.Request, _ *slog.Logger) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func testCatalog() Group {
	return Group{
		Modules: []Module{
			Func(Descriptor{Name: "Root", Method: "get", Path: "/ping"}, noop),
		},
		Groups: []Group{
			{
				Prefix: "/test",
				Modules: []Module{
					Func(Descriptor{
						Name:     "Echo",
						Method:   "GET",
						Path:     "/echo?msg=hello",
						Category: "Testing",
						Params:   []Param{{Name: "msg", Required: true}},
					}, noop),
				},
				Groups: []Group{
					{
						Prefix: "/deep",
						Modules: []Module{
							Func(Descriptor{Name: "Deep", Method: "post", Path: "/thing", Roles: []string{" admin ", ""}, RateLimit: 5}, noop),
						},
					},
				},
			},
		},
	}
}

func TestLoadDerivesPathsAndDefaults(t *testing.T) {
	reg, err := Load(testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	routes := reg.Routes()
	if len(routes) != 3 {
		t.Fatalf("expected 3 routes, got %d", len(routes))
	}

	want := []struct {
		method    Method
		path      string
		category  string
		rateLimit int
	}{
		{MethodGet, "/api/ping", DefaultCategory, DefaultRateLimit},
		{MethodGet, "/api/test/echo", "Testing", DefaultRateLimit},
		{MethodPost, "/api/test/deep/thing", DefaultCategory, 5},
	}
	for i, w := range want {
		got := routes[i]
		if got.Method != w.method || got.Path != w.path {
			t.Errorf("route %d: expected %s %s, got %s %s", i, w.method, w.path, got.Method, got.Path)
		}
		if got.Category != w.category {
			t.Errorf("route %d: expected category %q, got %q", i, w.category, got.Category)
		}
		if got.RateLimit != w.rateLimit {
			t.Errorf("route %d: expected rate limit %d, got %d", i, w.rateLimit, got.RateLimit)
		}
	}

	if roles := routes[2].Roles; len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("expected trimmed admin role, got %#v", roles)
	}
	if routes[1].Params[0].Type != ParamString {
		t.Fatalf("expected default param type string, got %q", routes[1].Params[0].Type)
	}
}

func TestLoadHonoursPrefixAndDefaultRateLimit(t *testing.T) {
	reg, err := Load(testCatalog(), Options{APIPrefix: "v2/", DefaultRateLimit: 10})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	route, ok := reg.Lookup(MethodGet, "/v2/test/echo")
	if !ok {
		t.Fatalf("expected echo route under /v2, routes: %#v", reg.Routes())
	}
	if route.RateLimit != 10 {
		t.Fatalf("expected configured default rate limit, got %d", route.RateLimit)
	}
}

func TestLoadRejectsMalformedModules(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
	}{
		{name: "missing method", desc: Descriptor{Name: "x", Path: "/x"}},
		{name: "unsupported method", desc: Descriptor{Name: "x", Method: "TRACE", Path: "/x"}},
		{name: "missing path", desc: Descriptor{Name: "x", Method: "GET"}},
		{name: "query only path", desc: Descriptor{Name: "x", Method: "GET", Path: "?a=b"}},
		{name: "relative path", desc: Descriptor{Name: "x", Method: "GET", Path: "x"}},
		{name: "unnamed param", desc: Descriptor{Name: "x", Method: "GET", Path: "/x", Params: []Param{{Name: " "}}}},
		{name: "duplicate param", desc: Descriptor{Name: "x", Method: "GET", Path: "/x", Params: []Param{{Name: "a"}, {Name: "a"}}}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			catalog := Group{Modules: []Module{
				Func(Descriptor{Name: "ok", Method: "GET", Path: "/ok"}, noop),
				Func(tc.desc, noop),
			}}
			reg, err := Load(catalog, Options{})
			if !errors.Is(err, ErrInvalidModule) {
				t.Fatalf("expected ErrInvalidModule, got %v", err)
			}
			if reg != nil {
				t.Fatal("expected no partial registry on failure")
			}
		})
	}
}

func TestLoadRejectsNilModule(t *testing.T) {
	_, err := Load(Group{Modules: []Module{nil}}, Options{})
	if !errors.Is(err, ErrInvalidModule) {
		t.Fatalf("expected ErrInvalidModule, got %v", err)
	}
}

func TestLoadRejectsDuplicateRoutes(t *testing.T) {
	catalog := Group{
		Modules: []Module{Func(Descriptor{Name: "a", Method: "GET", Path: "/x/y"}, noop)},
		Groups: []Group{{
			Prefix:  "/x",
			Modules: []Module{Func(Descriptor{Name: "b", Method: "GET", Path: "/y?doc=1"}, noop)},
		}},
	}
	_, err := Load(catalog, Options{})
	if !errors.Is(err, ErrDuplicateRoute) {
		t.Fatalf("expected ErrDuplicateRoute, got %v", err)
	}
}

func TestLoadAllowsSamePathDifferentMethods(t *testing.T) {
	catalog := Group{Modules: []Module{
		Func(Descriptor{Name: "read", Method: "GET", Path: "/poll"}, noop),
		Func(Descriptor{Name: "vote", Method: "POST", Path: "/poll"}, noop),
	}}
	reg, err := Load(catalog, Options{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	counts := reg.CountByMethod()
	if counts[MethodGet] != 1 || counts[MethodPost] != 1 {
		t.Fatalf("unexpected method counts %#v", counts)
	}
}

func TestLoadRejectsInvalidGroupPrefix(t *testing.T) {
	for _, prefix := range []string{"text", "/text/", "/{id}"} {
		_, err := Load(Group{Groups: []Group{{Prefix: prefix}}}, Options{})
		if !errors.Is(err, ErrInvalidGroup) {
			t.Errorf("prefix %q: expected ErrInvalidGroup, got %v", prefix, err)
		}
	}
}

func TestLoadLogsEachRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	if _, err := Load(testCatalog(), Options{Logger: logger}); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := strings.Count(buf.String(), "route loaded"); got != 3 {
		t.Fatalf("expected 3 route log lines, got %d: %s", got, buf.String())
	}
}

func TestByCategoryAndCategories(t *testing.T) {
	reg, err := Load(testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	grouped := reg.ByCategory()
	if len(grouped[DefaultCategory]) != 2 || len(grouped["Testing"]) != 1 {
		t.Fatalf("unexpected grouping %#v", grouped)
	}
	names := reg.Categories()
	if len(names) != 2 || names[0] != "Testing" || names[1] != DefaultCategory {
		t.Fatalf("expected sorted category names, got %v", names)
	}
}

func TestRoutesReturnsCopy(t *testing.T) {
	reg, err := Load(testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	routes := reg.Routes()
	routes[0].Path = "/mutated"
	if reg.Routes()[0].Path == "/mutated" {
		t.Fatal("expected registry to be unaffected by caller mutation")
	}
}

func TestRequiredParams(t *testing.T) {
	route := Route{Params: []Param{{Name: "a", Required: true}, {Name: "b"}, {Name: "c", Required: true}}}
	required := route.RequiredParams()
	if len(required) != 2 || required[0].Name != "a" || required[1].Name != "c" {
		t.Fatalf("unexpected required params %#v", required)
	}
}

func TestBasePath(t *testing.T) {
	cases := map[string]string{
		"/echo":           "/echo",
		"/echo?msg=hello": "/echo",
		" /a/b?x=1?y=2 ":  "/a/b",
		"?only=query":     "",
	}
	for input, want := range cases {
		if got := BasePath(input); got != want {
			t.Errorf("BasePath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFuncModuleWithoutHandler(t *testing.T) {
	module := Func(Descriptor{Name: "x"}, nil)
	if err := module.Handle(nil, nil, nil); !errors.Is(err, ErrHandlerMissing) {
		t.Fatalf("expected ErrHandlerMissing, got %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	if m, ok := ParseMethod(" patch "); !ok || m != MethodPatch {
		t.Fatalf("expected PATCH, got %q %v", m, ok)
	}
	if _, ok := ParseMethod("OPTIONS"); ok {
		t.Fatal("expected OPTIONS to be rejected")
	}
	if !MethodDelete.ReadsQuery() || MethodPut.ReadsQuery() {
		t.Fatal("unexpected ReadsQuery classification")
	}
}
