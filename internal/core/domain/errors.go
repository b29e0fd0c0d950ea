package domain

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

// ErrorKind is the stable, machine-readable name of a failure class.
type ErrorKind string

const (
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindConflict          ErrorKind = "conflict"
	KindAlreadyExists     ErrorKind = "already_exists"
	KindDuplicateRequest  ErrorKind = "duplicate_request"
	KindInternal          ErrorKind = "internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrNotFound, KindNotFound},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrConflict, KindConflict},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrDuplicateRequest, KindDuplicateRequest},
}

// KindOf classifies err. Anything that does not wrap a domain sentinel is
// internal.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// PublicMessage is the text safe to show a caller. Internal failures never
// leak their cause.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
