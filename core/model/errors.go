package model

import "errors"

// Error taxonomy shared by all coordination operations. Callers match with
// errors.Is; operations wrap these with contextual detail.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidStateTransition indicates the operation is not legal from the
	// entity's current status. Never retried automatically.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrResourceUnavailable indicates the driver or vehicle is not free for
	// the requested date. Callers may retry with different resources.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrCapacityExceeded indicates the combined cargo weight is over the
	// vehicle limit. Not retryable without changing the input.
	ErrCapacityExceeded = errors.New("vehicle capacity exceeded")

	// ErrOrderNotEligible indicates a date or window mismatch for the order.
	ErrOrderNotEligible = errors.New("order not eligible")

	// ErrPlanningFailed indicates no feasible grouping covers the requested
	// orders. Surfaced through session state, never thrown synchronously.
	ErrPlanningFailed = errors.New("planning failed")

	// ErrConcurrencyConflict indicates the per-date uniqueness constraint was
	// violated at commit time despite passing the availability pre-check.
	// Distinct from ErrResourceUnavailable so callers re-query instead of
	// retrying blindly.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrInvalidInput indicates a malformed request rejected before any state
	// is touched.
	ErrInvalidInput = errors.New("invalid input")
)
