package types

import (
	"errors"
	"fmt"
)

// Domain-level sentinel errors. Callers wrap them with %w and match with errors.Is.
var (
	// ErrValidation marks malformed enqueue or registration input
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPriority is returned for unrecognised priorities under the reject policy
	ErrInvalidPriority = fmt.Errorf("invalid priority: %w", ErrValidation)

	// ErrDuplicateSession is returned when a session already has a live queue entry
	ErrDuplicateSession = fmt.Errorf("session already queued: %w", ErrValidation)

	// ErrNotFound marks an operation on an unknown queue entry, agent or chat
	ErrNotFound = errors.New("not found")

	// ErrAgentUnavailable is returned when assigning to an agent that is not available
	ErrAgentUnavailable = fmt.Errorf("agent not available: %w", ErrNotFound)

	// ErrCapacityExceeded is returned when an agent is already at max concurrent chats
	ErrCapacityExceeded = errors.New("agent capacity exceeded")

	// ErrConcurrentModification is returned when state changed between ranking and commit
	ErrConcurrentModification = errors.New("concurrent modification")
)
