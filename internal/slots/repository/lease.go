package repository

import (
	"time"

	"slotlock/pkg/model"
)

// LeaseTable holds the active leases. It carries no lock of its own: the
// owning lock service accesses it exclusively from inside Store.Mutate
// callbacks, so every read and write already runs under the store mutex.
//
// Invariant: a slot is Locked iff exactly one entry here points at it.
type LeaseTable struct {
	byID   map[string]*model.Lease
	bySlot map[string]string
}

func NewLeaseTable() *LeaseTable {
	return &LeaseTable{
		byID:   make(map[string]*model.Lease),
		bySlot: make(map[string]string),
	}
}

func (t *LeaseTable) Insert(lease *model.Lease) {
	t.byID[lease.ID] = lease
	t.bySlot[lease.SlotID] = lease.ID
}

func (t *LeaseTable) Get(leaseID string) (*model.Lease, bool) {
	lease, ok := t.byID[leaseID]
	return lease, ok
}

func (t *LeaseTable) BySlot(slotID string) (*model.Lease, bool) {
	leaseID, ok := t.bySlot[slotID]
	if !ok {
		return nil, false
	}
	return t.Get(leaseID)
}

func (t *LeaseTable) Delete(leaseID string) {
	lease, ok := t.byID[leaseID]
	if !ok {
		return
	}
	delete(t.byID, leaseID)
	delete(t.bySlot, lease.SlotID)
}

// Expired returns every lease whose deadline has passed at now.
func (t *LeaseTable) Expired(now time.Time) []*model.Lease {
	var expired []*model.Lease
	for _, lease := range t.byID {
		if lease.Expired(now) {
			expired = append(expired, lease)
		}
	}
	return expired
}

func (t *LeaseTable) Len() int {
	return len(t.byID)
}
