package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"endpointhub/internal/registry"
)

type contextKey string

const (
	paramsKey contextKey = "params"
	roleKey   contextKey = "role"
)

// Values holds the request parameters seen by the validator: first query
// values for GET and DELETE routes, the decoded form or JSON body otherwise.
type Values map[string]any

func valuesFromQuery(query url.Values) Values {
	out := make(Values, len(query))
	for name, list := range query {
		if len(list) > 0 {
			out[name] = list[0]
		}
	}
	return out
}

// Has reports whether name is present with a non-null value. Strings made up
// only of whitespace count as empty.
func (v Values) Has(name string) bool {
	value, ok := v[name]
	if !ok || value == nil {
		return false
	}
	if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// String renders the value for name as text, or "" when absent.
func (v Values) String(name string) string {
	value, ok := v[name]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}

// Int parses the value for name, returning fallback when absent or not numeric.
func (v Values) Int(name string, fallback int) int {
	raw := strings.TrimSpace(v.String(name))
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return fallback
}

// Missing lists the required params absent from v, in declaration order.
func (v Values) Missing(params []registry.Param) []string {
	var missing []string
	for _, p := range params {
		if p.Required && !v.Has(p.Name) {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

func contextWithParams(ctx context.Context, values Values) context.Context {
	return context.WithValue(ctx, paramsKey, values)
}

// ParamsFromContext returns the validated parameters for the current request.
func ParamsFromContext(ctx context.Context) Values {
	if ctx == nil {
		return Values{}
	}
	if values, ok := ctx.Value(paramsKey).(Values); ok {
		return values
	}
	return Values{}
}

func contextWithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// RoleFromContext returns the role claim resolved by the authorizer.
func RoleFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	role, ok := ctx.Value(roleKey).(string)
	return role, ok && role != ""
}
