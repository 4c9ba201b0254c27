// Package apperrors holds the error taxonomy shared by the directory, registry,
// message store and their transports. Callers match with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an email, conversation or user has no match.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when an operation runs without a session identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrAuthorizationDenied is returned when access rules reject a read or write.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrTransient wraps network and store failures. The user may resubmit.
	ErrTransient = errors.New("transient failure")

	// ErrInvalidArgument is returned for malformed input, such as a chat with yourself.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when a unique key (an email, a member pair) belongs to someone else.
	ErrConflict = errors.New("conflict")
)

// Transient wraps err as ErrTransient unless it already belongs to the taxonomy.
func Transient(err error) error {
	if err == nil || IsKnown(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// Denied builds an ErrAuthorizationDenied with a reason.
func Denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthorizationDenied, fmt.Sprintf(format, args...))
}

// IsKnown reports whether err is one of the taxonomy errors.
func IsKnown(err error) bool {
	for _, known := range []error{
		ErrNotFound, ErrUnauthenticated, ErrAuthorizationDenied,
		ErrTransient, ErrInvalidArgument, ErrConflict,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a live subscription must stop after delivering err.
// Transient failures keep the subscription alive.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrAuthorizationDenied) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrNotFound)
}
