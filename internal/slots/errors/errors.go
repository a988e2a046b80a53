package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	ErrAlreadyBooked = errors.New("slot is already booked")

	ErrLockedByOther = errors.New("slot is locked by another owner")

	ErrVersionConflict = errors.New("store version does not match expected version")

	// ErrLockNotFound covers both an unknown lease id and an owner mismatch on
	// confirm, so callers cannot probe for the existence of foreign leases.
	ErrLockNotFound = errors.New("lease not found")

	ErrLockExpired = errors.New("lease has expired")

	ErrForbidden = errors.New("lease is owned by another owner")
)
