// Package apperrors defines the sentinel errors shared across kylinctl.
// Callers compare with errors.Is; typed errors in other packages wrap these.
package apperrors

import "errors"

var (
	ErrKylin            = errors.New("kylin error")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUserDisabled     = errors.New("user is disabled")
	ErrNoSuchTable      = errors.New("no such table")
	ErrQuery            = errors.New("query error")
	ErrUnsupportedType  = errors.New("unsupported type")
	ErrCube             = errors.New("cube error")
	ErrJob              = errors.New("job error")
	ErrModel            = errors.New("model error")
	ErrUnsupportedAPI   = errors.New("unsupported api")
	ErrConnection       = errors.New("connection error")
	ErrConfusedResponse = errors.New("confused response")
	ErrJoinGraph        = errors.New("join graph error")
	ErrMetadata         = errors.New("metadata consistency error")
	ErrNotFound         = errors.New("not found")
)
