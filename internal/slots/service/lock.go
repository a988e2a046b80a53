package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "slotlock/internal/slots/errors"
	"slotlock/internal/slots/repository"
	"slotlock/internal/slots/validator"
	"slotlock/pkg/config"
	apperrors "slotlock/pkg/errors"
	"slotlock/pkg/id"
	"slotlock/pkg/model"
)

// LockService mediates contention over the slot table with an optimistic
// lock-then-confirm protocol: acquire takes a time-limited lease, confirm
// turns it into a terminal booking, release gives it back. Contention is
// resolved by immediate typed rejection, never by queueing or waiting.
type LockService interface {
	List(ctx context.Context, afterVersion *uint64) model.Snapshot
	Acquire(ctx context.Context, req *model.AcquireRequest) (*model.Lease, uint64, error)
	Confirm(ctx context.Context, req *model.ConfirmRequest) (*model.Slot, uint64, error)
	Release(ctx context.Context, req *model.ReleaseRequest) (uint64, error)

	// SweepExpired reclaims every lease past its deadline and reverts the
	// slots it held. One version bump per sweep, none when nothing expired.
	SweepExpired() int
}

type lockService struct {
	store     *repository.Store
	leases    *repository.LeaseTable
	validator *validator.LockRequestValidator
	ids       id.Generator
	now       func() time.Time
	ttl       time.Duration
	cfg       *config.Config
}

func NewLockService(
	cfg *config.Config,
	store *repository.Store,
	validator *validator.LockRequestValidator,
	ids id.Generator,
) LockService {
	return &lockService{
		store:     store,
		leases:    repository.NewLeaseTable(),
		validator: validator,
		ids:       ids,
		now:       time.Now,
		ttl:       cfg.LeaseTTL,
		cfg:       cfg,
	}
}

// List returns the current snapshot. When afterVersion matches the current
// version the slot slice is elided; the version in the response is always
// authoritative.
func (s *lockService) List(ctx context.Context, afterVersion *uint64) model.Snapshot {
	snap := s.store.Snapshot()
	if afterVersion != nil && *afterVersion == snap.Version {
		return model.Snapshot{Slots: []model.Slot{}, Version: snap.Version}
	}
	return snap
}

func (s *lockService) Acquire(ctx context.Context, req *model.AcquireRequest) (*model.Lease, uint64, error) {
	if err := s.validator.ValidateAcquire(req); err != nil {
		s.cfg.Log.Warn("Acquire request validation failed", "error", err)
		return nil, 0, apperrors.Validation("Invalid acquire request", map[string]any{"error": err.Error()})
	}

	var lease model.Lease
	var conflictVersion uint64
	snap, err := s.store.Mutate(func(tx *repository.Tx) error {
		slot, ok := tx.Slot(req.SlotID)
		if !ok {
			return slotserrors.ErrSlotNotFound
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != tx.Version() {
			conflictVersion = tx.Version()
			return slotserrors.ErrVersionConflict
		}
		if slot.Status == model.SlotBooked {
			return slotserrors.ErrAlreadyBooked
		}
		if slot.Status == model.SlotLocked {
			// Re-entrant acquisition is unsupported: the current holder is
			// rejected the same way as everyone else.
			return slotserrors.ErrLockedByOther
		}
		s.assertUnlocked(slot)

		now := s.now()
		lease = model.Lease{
			ID:        s.ids.NewID(),
			SlotID:    slot.ID,
			OwnerID:   req.OwnerID,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
		}
		s.leases.Insert(&lease)
		slot.Status = model.SlotLocked
		slot.LockedBy = req.OwnerID
		return nil
	})
	if err != nil {
		s.logRejection("acquire", err, "slot_id", req.SlotID, "owner_id", req.OwnerID)
		if errors.Is(err, slotserrors.ErrVersionConflict) {
			return nil, 0, apperrors.VersionConflict(*req.ExpectedVersion, conflictVersion)
		}
		return nil, 0, s.toAppError(err, req.SlotID, "")
	}

	s.cfg.Log.Info("Lease acquired",
		"lease_id", lease.ID,
		"slot_id", lease.SlotID,
		"owner_id", lease.OwnerID,
		"expires_at", lease.ExpiresAt,
		"version", snap.Version,
	)
	returned := lease
	return &returned, snap.Version, nil
}

func (s *lockService) Confirm(ctx context.Context, req *model.ConfirmRequest) (*model.Slot, uint64, error) {
	if err := s.validator.ValidateConfirm(req); err != nil {
		s.cfg.Log.Warn("Confirm request validation failed", "error", err)
		return nil, 0, apperrors.Validation("Invalid confirm request", map[string]any{"error": err.Error()})
	}

	var booked model.Slot
	snap, err := s.store.Mutate(func(tx *repository.Tx) error {
		lease, ok := s.leases.Get(req.LeaseID)
		if !ok || lease.OwnerID != req.OwnerID {
			// Owner mismatch is reported as not-found so callers cannot
			// probe for foreign leases.
			return slotserrors.ErrLockNotFound
		}
		if lease.Expired(s.now()) {
			return slotserrors.ErrLockExpired
		}
		slot, ok := tx.Slot(lease.SlotID)
		if !ok {
			return slotserrors.ErrSlotNotFound
		}
		if slot.Status == model.SlotBooked {
			return slotserrors.ErrAlreadyBooked
		}
		s.assertHeldBy(slot, lease)

		slot.Status = model.SlotBooked
		slot.LockedBy = ""
		s.leases.Delete(lease.ID)
		booked = *slot
		return nil
	})
	if err != nil {
		s.logRejection("confirm", err, "lease_id", req.LeaseID, "owner_id", req.OwnerID)
		return nil, 0, s.toAppError(err, "", req.LeaseID)
	}

	s.cfg.Log.Info("Lease confirmed",
		"lease_id", req.LeaseID,
		"slot_id", booked.ID,
		"owner_id", req.OwnerID,
		"version", snap.Version,
	)
	return &booked, snap.Version, nil
}

func (s *lockService) Release(ctx context.Context, req *model.ReleaseRequest) (uint64, error) {
	if err := s.validator.ValidateRelease(req); err != nil {
		s.cfg.Log.Warn("Release request validation failed", "error", err)
		return 0, apperrors.Validation("Invalid release request", map[string]any{"error": err.Error()})
	}

	snap, err := s.store.Mutate(func(tx *repository.Tx) error {
		lease, ok := s.leases.Get(req.LeaseID)
		if !ok {
			return slotserrors.ErrLockNotFound
		}
		if lease.OwnerID != req.OwnerID {
			return slotserrors.ErrForbidden
		}
		slot, ok := tx.Slot(lease.SlotID)
		if !ok {
			return slotserrors.ErrSlotNotFound
		}
		s.assertHeldBy(slot, lease)

		slot.Status = model.SlotAvailable
		slot.LockedBy = ""
		s.leases.Delete(lease.ID)
		return nil
	})
	if err != nil {
		s.logRejection("release", err, "lease_id", req.LeaseID, "owner_id", req.OwnerID)
		return 0, s.toAppError(err, "", req.LeaseID)
	}

	s.cfg.Log.Info("Lease released",
		"lease_id", req.LeaseID,
		"owner_id", req.OwnerID,
		"version", snap.Version,
	)
	return snap.Version, nil
}

func (s *lockService) SweepExpired() int {
	var reclaimed int
	snap, err := s.store.Mutate(func(tx *repository.Tx) error {
		expired := s.leases.Expired(s.now())
		if len(expired) == 0 {
			return repository.ErrNoChange
		}
		for _, lease := range expired {
			slot, ok := tx.Slot(lease.SlotID)
			if !ok {
				panic(fmt.Sprintf("lease %s references unknown slot %s", lease.ID, lease.SlotID))
			}
			s.assertHeldBy(slot, lease)
			slot.Status = model.SlotAvailable
			slot.LockedBy = ""
			s.leases.Delete(lease.ID)
		}
		reclaimed = len(expired)
		return nil
	})
	if err != nil {
		// The only expected error is the no-change sentinel.
		if !errors.Is(err, repository.ErrNoChange) {
			s.cfg.Log.Error("Sweep failed", "error", err)
		}
		return 0
	}

	s.cfg.Log.Info("Expired leases reclaimed",
		"count", reclaimed,
		"version", snap.Version,
	)
	return reclaimed
}

// assertHeldBy guards the invariant that a locked slot has exactly one live
// lease held by the recorded owner. A violation means
// the mutation discipline was broken somewhere and is not recoverable.
func (s *lockService) assertHeldBy(slot *model.Slot, lease *model.Lease) {
	if slot.Status != model.SlotLocked || slot.LockedBy != lease.OwnerID {
		panic(fmt.Sprintf("slot %s in status %q (locked_by %q) but lease %s is held by %q",
			slot.ID, slot.Status, slot.LockedBy, lease.ID, lease.OwnerID))
	}
}

func (s *lockService) assertUnlocked(slot *model.Slot) {
	if _, held := s.leases.BySlot(slot.ID); held {
		panic(fmt.Sprintf("slot %s is %q but a live lease still points at it", slot.ID, slot.Status))
	}
}

func (s *lockService) logRejection(op string, err error, args ...any) {
	s.cfg.Log.Debug("Operation rejected", append([]any{"operation", op, "reason", err.Error()}, args...)...)
}

func (s *lockService) toAppError(err error, slotID, leaseID string) error {
	switch {
	case errors.Is(err, slotserrors.ErrSlotNotFound):
		target := slotID
		if target == "" {
			target = leaseID
		}
		return apperrors.NotFoundWithID("Slot", target)
	case errors.Is(err, slotserrors.ErrAlreadyBooked):
		return apperrors.AlreadyBooked(slotID)
	case errors.Is(err, slotserrors.ErrLockedByOther):
		return apperrors.LockedByOther(slotID)
	case errors.Is(err, slotserrors.ErrLockNotFound):
		return apperrors.LockNotFound()
	case errors.Is(err, slotserrors.ErrLockExpired):
		return apperrors.LockExpired(leaseID)
	case errors.Is(err, slotserrors.ErrForbidden):
		return apperrors.Forbidden("Lease is owned by another owner")
	default:
		return apperrors.Internal("Operation failed", err)
	}
}
