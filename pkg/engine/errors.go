package engine

import "errors"

var (
	// ErrUnauthorized is returned when the caller of an owner-only operation
	// is not the configured owner.
	ErrUnauthorized = errors.New("engine: caller is not the owner")

	// ErrNotFound is returned when the referenced obligation id does not exist.
	ErrNotFound = errors.New("engine: obligation not found")

	// ErrAlreadyPaid is returned by StopPayment on a disbursed obligation.
	ErrAlreadyPaid = errors.New("engine: obligation already paid")

	// ErrAlreadyStopped is returned by StopPayment on a stopped obligation.
	ErrAlreadyStopped = errors.New("engine: obligation already stopped")

	// ErrSweepLocked is returned when another replica holds the sweep lock.
	ErrSweepLocked = errors.New("engine: sweep lock held elsewhere")
)
