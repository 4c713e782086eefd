// Package fault defines the error kinds shared by the linestatus engine.
//
// Every error produced by the engine wraps exactly one of the sentinel values
// below, so callers can branch with errors.Is and loggers can tag entries with
// KindOf.
package fault

import "errors"

var (
	// ErrDuplicateElement is returned when registering a name twice.
	ErrDuplicateElement = errors.New("duplicate element")
	// ErrUnknownElement is returned when an update addresses a missing element.
	ErrUnknownElement = errors.New("unknown element")
	// ErrInvalidValue is returned for non-numeric or out-of-range values.
	ErrInvalidValue = errors.New("invalid value")
	// ErrMalformedCommand is returned when a command does not match the grammar.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrTransportUnavailable is returned when the socket cannot be bound.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrResourceCleanup is returned when close or unlink fails on shutdown.
	ErrResourceCleanup = errors.New("resource cleanup failure")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrDuplicateElement, "DuplicateElement"},
	{ErrUnknownElement, "UnknownElement"},
	{ErrInvalidValue, "InvalidValue"},
	{ErrMalformedCommand, "MalformedCommand"},
	{ErrTransportUnavailable, "TransportUnavailable"},
	{ErrResourceCleanup, "ResourceCleanupFailure"},
}

// KindOf returns the name of the error kind wrapped by err, or "" if err
// carries none of the kinds above.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// PerUpdate reports whether err belongs to the kinds that are recovered
// locally while processing a single update.
func PerUpdate(err error) bool {
	return errors.Is(err, ErrUnknownElement) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrMalformedCommand)
}
