package gate

import "errors"

// Sentinel errors returned by Authorize.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnknownRole  = errors.New("unknown role")
)
