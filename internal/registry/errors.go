package registry

import "errors"

var (
	ErrInvalidModule  = errors.New("registry: invalid module")
	ErrDuplicateRoute = errors.New("registry: duplicate route")
	ErrInvalidGroup   = errors.New("registry: invalid group prefix")
	ErrHandlerMissing = errors.New("registry: module has no handler")
)
