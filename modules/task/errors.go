package task

import "errors"

// Sentinel errors for task lifecycle operations. The api module maps these
// onto HTTP status codes with errors.Is, so rule failures must always wrap
// one of them.
var (
	// ErrOfferNotFound is returned when the referenced offer does not exist
	// on the task.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrForbidden is returned on role or ownership violations.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when the task's current status or offer
	// state does not allow the requested transition.
	ErrInvalidState = errors.New("invalid task state")

	// ErrInvalidArgument is returned for malformed or missing request fields.
	ErrInvalidArgument = errors.New("invalid argument")
)
