package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

const (
	DefaultAPIPrefix = "/api"
	DefaultCategory  = "uncategorized"
	DefaultRateLimit = 60
)

// Options controls how a catalog is turned into routes.
type Options struct {
	APIPrefix        string
	DefaultRateLimit int
	Logger           *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.APIPrefix == "" {
		o.APIPrefix = DefaultAPIPrefix
	}
	o.APIPrefix = "/" + strings.Trim(o.APIPrefix, "/")
	if o.APIPrefix == "/" {
		o.APIPrefix = ""
	}
	if o.DefaultRateLimit <= 0 {
		o.DefaultRateLimit = DefaultRateLimit
	}
	return o
}

// Route is a loaded module together with the metadata derived from its
// descriptor. Routes are never mutated after Load returns.
type Route struct {
	Name        string   `json:"name"`
	Method      Method   `json:"method"`
	Path        string   `json:"endpoint"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Params      []Param  `json:"params"`
	Roles       []string `json:"roles,omitempty"`
	RateLimit   int      `json:"rateLimit"`

	Module Module `json:"-"`
}

// RequiredParams returns the parameters validation must find in a request.
func (r Route) RequiredParams() []Param {
	required := make([]Param, 0, len(r.Params))
	for _, p := range r.Params {
		if p.Required {
			required = append(required, p)
		}
	}
	return required
}

// Registry is the flat, read-only table of loaded routes in registration order.
type Registry struct {
	routes []Route
	index  map[string]int
}

// Load walks the catalog depth first, modules before sub-groups, and builds
// the route table. The first malformed module aborts loading.
func Load(root Group, opts Options) (*Registry, error) {
	opts = opts.withDefaults()
	reg := &Registry{index: make(map[string]int)}
	if err := reg.walk(root, "", opts); err != nil {
		return nil, err
	}
	return reg, nil
}

func (reg *Registry) walk(group Group, parentPrefix string, opts Options) error {
	prefix, err := normalizePrefix(group.Prefix)
	if err != nil {
		return err
	}
	accumulated := parentPrefix + prefix

	for i, module := range group.Modules {
		route, err := buildRoute(module, accumulated, opts)
		if err != nil {
			return fmt.Errorf("load %s module #%d: %w", displayPrefix(accumulated), i, err)
		}
		key := routeKey(route.Method, route.Path)
		if _, exists := reg.index[key]; exists {
			return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, route.Method, route.Path)
		}
		reg.index[key] = len(reg.routes)
		reg.routes = append(reg.routes, route)
		if opts.Logger != nil {
			opts.Logger.Info("route loaded",
				"name", route.Name,
				"method", string(route.Method),
				"path", route.Path,
				"category", route.Category)
		}
	}

	for _, child := range group.Groups {
		if err := reg.walk(child, accumulated, opts); err != nil {
			return err
		}
	}
	return nil
}

func buildRoute(module Module, prefix string, opts Options) (Route, error) {
	if module == nil {
		return Route{}, fmt.Errorf("%w: module is nil", ErrInvalidModule)
	}
	desc := module.Describe()
	name := strings.TrimSpace(desc.Name)
	if name == "" {
		name = "unnamed"
	}

	method, ok := ParseMethod(desc.Method)
	if !ok {
		return Route{}, fmt.Errorf("%w: %q declares unsupported method %q", ErrInvalidModule, name, desc.Method)
	}

	base := BasePath(desc.Path)
	if base == "" {
		return Route{}, fmt.Errorf("%w: %q declares no path", ErrInvalidModule, name)
	}
	if !strings.HasPrefix(base, "/") {
		return Route{}, fmt.Errorf("%w: %q path %q must start with /", ErrInvalidModule, name, base)
	}

	params, err := normalizeParams(name, desc.Params)
	if err != nil {
		return Route{}, err
	}

	category := strings.TrimSpace(desc.Category)
	if category == "" {
		category = DefaultCategory
	}

	rateLimit := desc.RateLimit
	if rateLimit <= 0 {
		rateLimit = opts.DefaultRateLimit
	}

	return Route{
		Name:        name,
		Method:      method,
		Path:        opts.APIPrefix + prefix + base,
		Category:    category,
		Description: strings.TrimSpace(desc.Description),
		Params:      params,
		Roles:       normalizeRoles(desc.Roles),
		RateLimit:   rateLimit,
		Module:      module,
	}, nil
}

// BasePath strips inline query documentation from a declared path.
func BasePath(declared string) string {
	trimmed := strings.TrimSpace(declared)
	if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

func normalizePrefix(prefix string) (string, error) {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return "", nil
	}
	if !strings.HasPrefix(trimmed, "/") || strings.HasSuffix(trimmed, "/") || strings.ContainsAny(trimmed, "?{}") {
		return "", fmt.Errorf("%w: %q", ErrInvalidGroup, prefix)
	}
	return trimmed, nil
}

func normalizeParams(route string, params []Param) ([]Param, error) {
	out := make([]Param, 0, len(params))
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: %q declares a parameter without a name", ErrInvalidModule, route)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q declares parameter %q twice", ErrInvalidModule, route, name)
		}
		seen[name] = struct{}{}
		p.Name = name
		if p.Type == "" {
			p.Type = ParamString
		}
		out = append(out, p)
	}
	return out, nil
}

func normalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if trimmed := strings.TrimSpace(role); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func displayPrefix(prefix string) string {
	if prefix == "" {
		return "root"
	}
	return prefix
}

func routeKey(method Method, path string) string {
	return string(method) + " " + path
}

// Routes returns a copy of the table in registration order.
func (reg *Registry) Routes() []Route {
	if reg == nil {
		return nil
	}
	out := make([]Route, len(reg.routes))
	copy(out, reg.routes)
	return out
}

// Len reports the number of loaded routes.
func (reg *Registry) Len() int {
	if reg == nil {
		return 0
	}
	return len(reg.routes)
}

// Lookup finds the route registered for method and full path.
func (reg *Registry) Lookup(method Method, path string) (Route, bool) {
	if reg == nil {
		return Route{}, false
	}
	idx, ok := reg.index[routeKey(method, path)]
	if !ok {
		return Route{}, false
	}
	return reg.routes[idx], true
}

// ByCategory groups routes by category, keeping registration order inside
// each category.
func (reg *Registry) ByCategory() map[string][]Route {
	out := make(map[string][]Route)
	if reg == nil {
		return out
	}
	for _, route := range reg.routes {
		out[route.Category] = append(out[route.Category], route)
	}
	return out
}

// Categories returns the category names in sorted order.
func (reg *Registry) Categories() []string {
	grouped := reg.ByCategory()
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CountByMethod tallies routes per HTTP method.
func (reg *Registry) CountByMethod() map[Method]int {
	out := make(map[Method]int)
	if reg == nil {
		return out
	}
	for _, route := range reg.routes {
		out[route.Method]++
	}
	return out
}
