package model

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotLocked    SlotStatus = "locked"
	SlotBooked    SlotStatus = "booked"
)

// Slot represents one exclusive bookable resource unit.
// ID and Label are immutable after creation; Status and LockedBy only change
// inside the store's critical section.
type Slot struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Status   SlotStatus `json:"status"`
	LockedBy string     `json:"locked_by,omitempty"`
}

// Snapshot is an immutable point-in-time copy of all slot records paired with
// the version at which it was taken.
type Snapshot struct {
	Slots   []Slot `json:"slots"`
	Version uint64 `json:"version"`
}
