package registry

import (
	"errors"
	"fmt"
)

// Error is a typed registry error.
//
// Registry operations return *Error so callers can branch on the failure
// kind without parsing messages. Backend failures wrap the underlying error
// and remain inspectable through errors.Unwrap.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable description
	Message string

	// Name is the filesystem or endpoint name the operation targeted
	Name string

	// Err is the wrapped backend error, if any
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Name != "" {
		msg = msg + ": " + e.Name
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped backend error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode is the category of a registry error.
type ErrorCode int

const (
	// ErrNotFound indicates the named filesystem or endpoint doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a duplicate create (filesystem or binding)
	ErrAlreadyExists

	// ErrInvalidState indicates the operation violates a precondition,
	// e.g. deleting a filesystem that is still exported
	ErrInvalidState

	// ErrNotEmpty indicates a delete was blocked by a non-empty tree
	ErrNotEmpty

	// ErrInvalidArgument indicates a malformed input such as an oversized
	// filesystem name
	ErrInvalidArgument

	// ErrBackendFailure indicates a propagated error from the KV store,
	// namespace store or tenant store
	ErrBackendFailure

	// ErrResourceExhausted indicates an allocation failure, e.g. the
	// 16-bit namespace id space is exhausted
	ErrResourceExhausted
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrInvalidState:
		return "InvalidState"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrBackendFailure:
		return "BackendFailure"
	case ErrResourceExhausted:
		return "ResourceExhausted"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// ErrInconsistentStores is the fatal startup error returned when the tenant
// store references a filesystem the namespace store doesn't know about. The
// two persisted stores are expected to always agree; a mismatch means the
// backend is corrupt and initialization must not continue.
var ErrInconsistentStores = errors.New("tenant store and namespace store are inconsistent")

// CodeOf extracts the ErrorCode from err, or ErrBackendFailure if err is
// not a registry error.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrBackendFailure
}

// backendErr wraps a store error as a BackendFailure.
func backendErr(name, msg string, err error) *Error {
	return &Error{Code: ErrBackendFailure, Message: msg, Name: name, Err: err}
}
