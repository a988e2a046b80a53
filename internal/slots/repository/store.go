package repository

import (
	"errors"
	"fmt"
	"sync"

	"slotlock/pkg/model"
)

// ErrNoChange aborts a Mutate callback without bumping the version or firing
// the change hook. Used by sweeps that found nothing to reclaim.
var ErrNoChange = errors.New("mutation produced no change")

// Store is the sole mutation point for slot state. It owns the slot table and
// the version counter, and its mutex is the single mutual-exclusion domain for
// every mutation in the system, lease bookkeeping included: the lock service
// touches its lease table only from inside Mutate callbacks, so acquiring a
// slot and sweeping its expiry can never interleave partially.
type Store struct {
	mu       sync.RWMutex
	order    []string
	slots    map[string]*model.Slot
	version  uint64
	onChange func(model.Snapshot)
}

func NewStore(seed []model.Slot) *Store {
	s := &Store{
		slots: make(map[string]*model.Slot, len(seed)),
	}
	for _, slot := range seed {
		if _, dup := s.slots[slot.ID]; dup {
			continue
		}
		if slot.Status == "" {
			slot.Status = model.SlotAvailable
		}
		copied := slot
		s.slots[slot.ID] = &copied
		s.order = append(s.order, slot.ID)
	}
	return s
}

// Seed builds n available slots with ids "s1".."sN". The core has no
// slot-creation operation, so the table is fixed at construction.
func Seed(n int) []model.Slot {
	slots := make([]model.Slot, 0, n)
	for i := 1; i <= n; i++ {
		slots = append(slots, model.Slot{
			ID:     fmt.Sprintf("s%d", i),
			Label:  fmt.Sprintf("Slot %d", i),
			Status: model.SlotAvailable,
		})
	}
	return slots
}

// OnChange registers the hook invoked with the fresh snapshot after every
// successful mutation, while the mutation lock is still held. The hook must
// not block; Notifier.Publish hands off to per-subscriber buffers.
// Must be called before the store is shared between goroutines.
func (s *Store) OnChange(fn func(model.Snapshot)) {
	s.onChange = fn
}

// Snapshot returns a consistent point-in-time view of all slots and the
// version they were observed at. The copy is deep: callers may keep or mutate
// the returned slice freely.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Mutate runs fn under the store's write lock. If fn returns nil, the version
// is incremented by exactly one and the change hook fires; the resulting
// snapshot is returned. If fn returns an error (ErrNoChange included), the
// version is untouched and the error is passed through.
//
// fn must check every precondition before writing anything: a callback that
// mutates state and then fails would violate the all-or-nothing contract.
func (s *Store) Mutate(fn func(tx *Tx) error) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&Tx{store: s}); err != nil {
		return model.Snapshot{}, err
	}

	s.version++
	snap := s.snapshotLocked()
	if s.onChange != nil {
		s.onChange(snap)
	}
	return snap, nil
}

func (s *Store) snapshotLocked() model.Snapshot {
	slots := make([]model.Slot, 0, len(s.order))
	for _, id := range s.order {
		slots = append(slots, *s.slots[id])
	}
	return model.Snapshot{Slots: slots, Version: s.version}
}

// Tx is the mutable view of the store handed to Mutate callbacks. It is only
// valid for the duration of the callback.
type Tx struct {
	store *Store
}

func (tx *Tx) Version() uint64 {
	return tx.store.version
}

// Slot returns the live record for id. Mutations through the returned pointer
// are covered by the store lock held for the whole callback.
func (tx *Tx) Slot(id string) (*model.Slot, bool) {
	slot, ok := tx.store.slots[id]
	return slot, ok
}
