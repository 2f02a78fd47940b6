// Package apierr defines the closed set of error kinds the API reports to
// clients and the HTTP status code each kind maps to.
package apierr

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Kind classifies an error that is expected to reach a client.
type Kind uint8

// Error kinds. The zero value is not a valid kind.
const (
	TokenNotFound Kind = iota + 1
	AuthenticationNotFound
	TokenInvalid
	AuthenticationInvalid
	PermissionDenied
	TokenExpired
	RecordNotFound
	NotFound
	PayloadNotFound
	PayloadMalformed
	PayloadInvalid
	ConstraintViolation
	ParameterInvalid
	NotImplemented
	PayloadTooLarge
	RateLimited
)

// Status returns the HTTP status code for the kind. Unknown kinds map to
// 500 Internal Server Error.
func (k Kind) Status() int {
	switch k {
	case TokenNotFound, AuthenticationNotFound, TokenInvalid, AuthenticationInvalid:
		return http.StatusForbidden
	case PermissionDenied, TokenExpired:
		return http.StatusUnauthorized
	case RecordNotFound, NotFound:
		return http.StatusNotFound
	case PayloadNotFound, PayloadMalformed, PayloadInvalid, ConstraintViolation, ParameterInvalid:
		return http.StatusBadRequest
	case NotImplemented:
		return http.StatusNotImplemented
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case TokenNotFound:
		return "TokenNotFound"
	case AuthenticationNotFound:
		return "AuthenticationNotFound"
	case TokenInvalid:
		return "TokenInvalid"
	case AuthenticationInvalid:
		return "AuthenticationInvalid"
	case PermissionDenied:
		return "PermissionDenied"
	case TokenExpired:
		return "TokenExpired"
	case RecordNotFound:
		return "RecordNotFound"
	case NotFound:
		return "NotFound"
	case PayloadNotFound:
		return "PayloadNotFound"
	case PayloadMalformed:
		return "PayloadMalformed"
	case PayloadInvalid:
		return "PayloadInvalid"
	case ConstraintViolation:
		return "ConstraintViolation"
	case ParameterInvalid:
		return "ParameterInvalid"
	case NotImplemented:
		return "NotImplemented"
	case PayloadTooLarge:
		return "PayloadTooLarge"
	case RateLimited:
		return "RateLimited"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is an error of a known kind. Message is what the client sees; Err is
// an optional cause kept for logs and errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is like New but formats the message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind that keeps err as its cause.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code of the error's kind.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
