package lock

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Priority selects how waiting readers and writers are tie-broken against
// each other when the lock becomes available.
type Priority int

const (
	// PriorityUnspecified services all waiters in strict arrival order,
	// regardless of kind. An incompatible waiter at the head of the queue
	// blocks everyone behind it.
	PriorityUnspecified Priority = iota

	// PriorityRead drains every waiting reader before any waiting writer is
	// considered.
	PriorityRead

	// PriorityWrite services waiting writers exclusively; waiting readers are
	// considered only while no writer is waiting.
	PriorityWrite
)

// ErrUnknownPriority is returned by ParsePriority for unrecognized input.
var ErrUnknownPriority = fmt.Errorf("unknown lock priority")

// String returns the textual form accepted by ParsePriority.
func (p Priority) String() string {
	switch p {
	case PriorityRead:
		return "read"
	case PriorityWrite:
		return "write"
	default:
		return "unspecified"
	}
}

// ParsePriority parses a priority from its textual form. The empty string
// parses as PriorityUnspecified so that an omitted flag or config key selects
// the default.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "unspecified":
		return PriorityUnspecified, nil
	case "read":
		return PriorityRead, nil
	case "write":
		return PriorityWrite, nil
	default:
		return PriorityUnspecified, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
}

// Config holds the construction-time configuration of a Lock.
//
// The zero value is usable: unspecified priority and a disabled logger.
type Config struct {
	// Priority is the initial priority mode. It can be changed at runtime with
	// SetPriority.
	Priority Priority

	// Logger receives misuse diagnostics and callback panic reports. The zero
	// value logs nothing.
	Logger zerolog.Logger
}
