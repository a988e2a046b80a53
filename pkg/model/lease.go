package model

import "time"

// Lease represents a time-bounded exclusive hold on a slot. A lease is never
// mutated in place: confirm, release, and expiry all delete it.
type Lease struct {
	ID        string    `json:"lease_id"`
	SlotID    string    `json:"slot_id"`
	OwnerID   string    `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the lease deadline has passed at the given instant.
func (l *Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
