package domain

import "errors"

var (
	ErrNotFound       = errors.New("call not found")
	ErrInvalidCall    = errors.New("invalid call")
	ErrActivePosition = errors.New("call is still active, close it first")
	ErrAlreadyClosed  = errors.New("call is already closed")

	ErrUnauthorized = errors.New("not signed in")
	ErrForbidden    = errors.New("admin access required")
	ErrBadLogin     = errors.New("invalid credentials")

	ErrQuoteUnavailable = errors.New("quote unavailable")
)
