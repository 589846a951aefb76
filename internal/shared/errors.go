// Package shared contains common error types and utilities.
package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common domain errors that can be used across the application
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that a domain entity failed its invariants
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a uniqueness or foreign-key constraint violation
	ErrConflict = errors.New("conflict")

	// ErrBusy indicates that a write was abandoned after exhausting retries
	// on storage-level lock contention
	ErrBusy = errors.New("storage busy")

	// ErrNotConnected indicates that an accessor was used before a live
	// database handle was supplied
	ErrNotConnected = errors.New("not connected")

	// ErrConnection indicates that the underlying storage could not be
	// opened or configured
	ErrConnection = errors.New("connection failed")

	// ErrStatement indicates a malformed statement or a non-retryable
	// storage fault
	ErrStatement = errors.New("statement execution failed")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// Kind represents a category of error for easier classification and handling.
type Kind int

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindNotFound represents entity-not-found errors
	KindNotFound
	// KindValidation represents domain validation errors
	KindValidation
	// KindConflict represents constraint violation errors
	KindConflict
	// KindBusy represents retry exhaustion on lock contention
	KindBusy
	// KindNotConnected represents use-before-connect programming errors
	KindNotConnected
	// KindConnection represents storage open/configure failures
	KindConnection
	// KindStatement represents non-retryable statement failures
	KindStatement
	// KindInternal represents internal errors
	KindInternal
	// KindTimeout represents timeout errors
	KindTimeout
	// KindCanceled represents context cancellation
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindConflict:
		return "Conflict"
	case KindBusy:
		return "Busy"
	case KindNotConnected:
		return "NotConnected"
	case KindConnection:
		return "Connection"
	case KindStatement:
		return "Statement"
	case KindInternal:
		return "Internal"
	case KindTimeout:
		return "Timeout"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// kindToSentinel maps error kinds to their corresponding sentinel errors.
var kindToSentinel = map[Kind]error{
	KindNotFound:     ErrNotFound,
	KindValidation:   ErrValidation,
	KindConflict:     ErrConflict,
	KindBusy:         ErrBusy,
	KindNotConnected: ErrNotConnected,
	KindConnection:   ErrConnection,
	KindStatement:    ErrStatement,
	KindInternal:     ErrInternal,
	KindTimeout:      ErrTimeout,
}

// kindPriorities defines the deterministic order for error classification.
// Higher priority (lower index) kinds are checked first in KindOf.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},       // context.Canceled (special case)
	{KindTimeout, ErrTimeout}, // timeout errors have high priority
	{KindNotConnected, ErrNotConnected},
	{KindConnection, ErrConnection},
	{KindNotFound, ErrNotFound},
	{KindValidation, ErrValidation},
	{KindConflict, ErrConflict},
	{KindBusy, ErrBusy},
	{KindStatement, ErrStatement},
	{KindInternal, ErrInternal},
}

// KindOf returns the Kind of the given error by checking against known sentinel errors.
// It traverses the error chain to find the root classification using a deterministic
// priority order. Cancellation and timeouts rank above the storage kinds; constraint
// violations (Conflict) rank above retry exhaustion (Busy) so that a joined error
// reports the data problem first.
//
// Returns KindUnknown for unrecognized errors.
//
// Example:
//
//	switch shared.KindOf(err) {
//	case shared.KindNotFound:
//	    return http.StatusNotFound
//	case shared.KindConflict:
//	    return http.StatusConflict
//	case shared.KindBusy:
//	    return http.StatusServiceUnavailable
//	default:
//	    return http.StatusInternalServerError
//	}
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	// Check kinds in priority order (deterministic)
	for _, priority := range kindPriorities {
		switch priority.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if priority.err != nil && errors.Is(err, priority.err) {
				return priority.kind
			}
		}
	}

	return KindUnknown
}

// HasKind reports whether the given error has the specified kind.
// It is equivalent to KindOf(err) == kind but provides a more explicit API.
func HasKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// SentinelOf returns the sentinel error for the given Kind.
// For KindUnknown and KindCanceled, it returns nil.
func SentinelOf(kind Kind) error {
	if sentinel, exists := kindToSentinel[kind]; exists {
		return sentinel
	}
	return nil
}

// MarkKind wraps an error with the appropriate sentinel error for the given kind,
// preserving the original error through error wrapping.
// This allows both KindOf(MarkKind(err, kind)) == kind and errors.Is(MarkKind(err, kind), err).
// If err is nil, returns the sentinel error for the kind (or nil for unsupported kinds).
// If kind is KindUnknown or KindCanceled, returns the original error unchanged.
//
// This function is idempotent: marking an error with a kind it already has
// returns the error unchanged.
func MarkKind(err error, kind Kind) error {
	if err == nil {
		return SentinelOf(kind)
	}

	switch kind {
	case KindUnknown, KindCanceled:
		return err
	}

	sentinel := SentinelOf(kind)
	if sentinel == nil {
		return err
	}

	// If the error already has this kind, return as-is to avoid double wrapping
	if KindOf(err) == kind {
		return err
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context.
// It returns a new error that formats as "context: err".
// If err is nil, Wrap returns nil.
// If context is empty, returns the original error.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
// It returns a new error that formats as "context: err".
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(format, args...)
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsCanceled reports whether the error indicates a canceled context.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout.
// It checks for context.DeadlineExceeded, net.Error timeouts, and our ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// IsNotFound reports whether the error indicates an entity-not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether the error indicates domain validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports whether the error indicates a constraint violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsBusy reports whether the error indicates retry exhaustion on lock contention.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsNotConnected reports whether the error indicates use of an accessor
// before a database handle was supplied.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
