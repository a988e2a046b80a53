package repository

import (
	"testing"
	"time"

	"slotlock/pkg/model"
)

func lease(id, slotID, owner string, expiresAt time.Time) *model.Lease {
	return &model.Lease{ID: id, SlotID: slotID, OwnerID: owner, ExpiresAt: expiresAt}
}

func TestLeaseTable_InsertGetDelete(t *testing.T) {
	table := NewLeaseTable()
	now := time.Now()

	table.Insert(lease("l1", "s1", "alice", now.Add(time.Minute)))

	if got, ok := table.Get("l1"); !ok || got.OwnerID != "alice" {
		t.Errorf("Get(l1) = %+v, %v", got, ok)
	}
	if got, ok := table.BySlot("s1"); !ok || got.ID != "l1" {
		t.Errorf("BySlot(s1) = %+v, %v", got, ok)
	}
	if table.Len() != 1 {
		t.Errorf("expected 1 lease, got %d", table.Len())
	}

	table.Delete("l1")
	if _, ok := table.Get("l1"); ok {
		t.Error("lease survived delete")
	}
	if _, ok := table.BySlot("s1"); ok {
		t.Error("slot index survived delete")
	}

	// Deleting an unknown id is a no-op.
	table.Delete("l1")
}

func TestLeaseTable_Expired(t *testing.T) {
	table := NewLeaseTable()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	table.Insert(lease("l1", "s1", "alice", now.Add(-time.Second)))
	table.Insert(lease("l2", "s2", "bob", now)) // deadline reached counts as expired
	table.Insert(lease("l3", "s3", "carol", now.Add(time.Second)))

	expired := table.Expired(now)
	if len(expired) != 2 {
		t.Fatalf("expected 2 expired leases, got %d", len(expired))
	}
	for _, l := range expired {
		if l.ID == "l3" {
			t.Error("live lease reported as expired")
		}
	}
}
