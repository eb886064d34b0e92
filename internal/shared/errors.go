package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a consumption exceeding available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNoLocationAvailable indicates the allocator found no location with spare capacity.
	ErrNoLocationAvailable = errors.New("no location available")
	// ErrAlreadyCompleted indicates an idempotent re-completion with matching arguments.
	ErrAlreadyCompleted = errors.New("already completed")
	// ErrAlreadyAdjusted indicates a cycle-count item variance was already applied.
	ErrAlreadyAdjusted = errors.New("already adjusted")
	// ErrConflictingState indicates a re-completion whose arguments differ from the first.
	ErrConflictingState = errors.New("conflicting state")
	// ErrInvalidTransition indicates a workflow status transition requested out of order.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConcurrencyConflict indicates a lock or version conflict; callers may retry the whole operation.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// UserSafeMessage maps internal errors to a message safe to show callers.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "Insufficient stock for the requested quantity"
	case errors.Is(err, ErrNoLocationAvailable):
		return "No storage location with spare capacity"
	case errors.Is(err, ErrInvalidTransition):
		return "Operation not allowed in the current status"
	case errors.Is(err, ErrNotFound):
		return "Record not found"
	default:
		return "Internal error, please retry"
	}
}
