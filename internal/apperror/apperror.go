// Package apperror provides the error codes shared by every core package:
// upload, catalog, objectstore, indexstore and scanner all return errors
// wrapped in *Error so handlers can map them to HTTP statuses without
// inspecting driver-specific error types.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of failure a core operation reports.
type Code int

const (
	// Unknown is the zero value; CodeOf returns it for errors that were
	// never wrapped in *Error.
	Unknown Code = iota

	// NotFound indicates the referenced file, session, or object does not exist.
	NotFound

	// AlreadyExists indicates an insert would collide with an existing row.
	AlreadyExists

	// Unauthorized indicates missing or invalid authentication. Never
	// produced by the core; reserved for the auth collaborator.
	Unauthorized

	// Forbidden indicates the authenticated caller lacks access. Never
	// produced by the core.
	Forbidden

	// BadRequest indicates malformed input: empty chunk, mismatched
	// totals, malformed checksum hex.
	BadRequest

	// ChecksumMismatch indicates a part's SHA-256 did not match its bytes,
	// whether detected by the engine or reported by the object store as
	// BadDigest.
	ChecksumMismatch

	// Conflict indicates session state contradicts the request, e.g. a
	// wrong file_id for an upload_id.
	Conflict

	// Backend indicates a transient or opaque failure of a downstream store.
	Backend

	// Cancelled indicates the caller withdrew (context cancellation).
	Cancelled
)

// String returns a human-readable name for the code.
func (c Code) String() string {
	switch c {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case BadRequest:
		return "BadRequest"
	case ChecksumMismatch:
		return "ChecksumMismatch"
	case Conflict:
		return "Conflict"
	case Backend:
		return "Backend"
	case Cancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Error is the error type every core package returns.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error carrying a downstream cause, e.g. a driver error
// from pgx or the S3 SDK.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the Code of err, or Unknown if err is nil or was never
// wrapped in *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a Code to the status the HTTP surface should return,
// per the propagation policy: NotFound -> 404, ChecksumMismatch/BadRequest
// -> 400, Conflict/AlreadyExists -> 409, Unauthorized -> 401, Forbidden
// -> 403, Cancelled -> 499, everything else -> 500.
func HTTPStatus(code Code) int {
	switch code {
	case NotFound:
		return http.StatusNotFound
	case ChecksumMismatch, BadRequest:
		return http.StatusBadRequest
	case Conflict, AlreadyExists:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Cancelled:
		return 499 // client closed request, matching nginx convention
	default:
		return http.StatusInternalServerError
	}
}
