package model

// AcquireRequest asks for a time-limited exclusive lease on a slot. When
// ExpectedVersion is set, the acquire is rejected with a version conflict if
// the store has moved past that version.
type AcquireRequest struct {
	SlotID          string  `json:"slot_id" validate:"required,identifier"`
	OwnerID         string  `json:"owner_id" validate:"required,identifier"`
	ExpectedVersion *uint64 `json:"expected_version,omitempty"`
}

// ConfirmRequest turns an active lease into a terminal booking.
type ConfirmRequest struct {
	LeaseID string `json:"lease_id" validate:"required,identifier"`
	OwnerID string `json:"owner_id" validate:"required,identifier"`
}

// ReleaseRequest gives up an active lease and reverts its slot.
type ReleaseRequest struct {
	LeaseID string `json:"lease_id" validate:"required,identifier"`
	OwnerID string `json:"owner_id" validate:"required,identifier"`
}

type AcquireResponse struct {
	Lease   *Lease `json:"lease"`
	Version uint64 `json:"version"`
}

type ConfirmResponse struct {
	Slot    *Slot  `json:"slot"`
	Version uint64 `json:"version"`
}

type ReleaseResponse struct {
	Version uint64 `json:"version"`
}
