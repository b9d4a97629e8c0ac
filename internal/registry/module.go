package registry

import (
	"log/slog"
	"net/http"
	"strings"
)

// Method enumerates the HTTP verbs a module may declare.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
	MethodPatch  Method = http.MethodPatch
)

// ParseMethod normalizes a declared method and reports whether it is supported.
func ParseMethod(value string) (Method, bool) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(value))); m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return m, true
	default:
		return "", false
	}
}

// ReadsQuery reports whether parameters for the method travel in the query
// string rather than the request body.
func (m Method) ReadsQuery() bool {
	return m == MethodGet || m == MethodDelete
}

// ParamType documents the expected shape of a parameter. It is descriptive
// only; validation checks presence and emptiness.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
)

// Param describes one named input of a route.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// Descriptor is what a module declares about itself. Path may carry inline
// query documentation ("/echo?msg=hello"); only the part before '?' is routed.
type Descriptor struct {
	Name        string
	Method      string
	Path        string
	Category    string
	Description string
	Params      []Param
	Roles       []string
	RateLimit   int
}

// Module is the unit of extension: one module, one route.
type Module interface {
	Describe() Descriptor
	// Handle writes exactly one response, or returns an error for the
	// server's error boundary to render.
	Handle(w http.ResponseWriter, r *http.Request, logger *slog.Logger) error
}

// HandlerFunc is the entry point signature shared by function-backed modules.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, logger *slog.Logger) error

type funcModule struct {
	descriptor Descriptor
	handle     HandlerFunc
}

// Func adapts a descriptor and a plain function into a Module.
func Func(descriptor Descriptor, handle HandlerFunc) Module {
	return funcModule{descriptor: descriptor, handle: handle}
}

func (m funcModule) Describe() Descriptor {
	return m.descriptor
}

func (m funcModule) Handle(w http.ResponseWriter, r *http.Request, logger *slog.Logger) error {
	if m.handle == nil {
		return ErrHandlerMissing
	}
	return m.handle(w, r, logger)
}

// Group is one level of the catalog tree. Prefix is joined onto every route
// declared below it, the way a directory name would be.
type Group struct {
	Prefix  string
	Modules []Module
	Groups  []Group
}
