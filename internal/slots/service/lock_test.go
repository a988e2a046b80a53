package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"slotlock/internal/slots/repository"
	"slotlock/internal/slots/validator"
	"slotlock/pkg/config"
	apperrors "slotlock/pkg/errors"
	"slotlock/pkg/id"
	"slotlock/pkg/logger"
	"slotlock/pkg/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(clock *fakeClock, slots ...model.Slot) *lockService {
	log := logger.Discard()
	cfg := &config.Config{
		Log:      log,
		LeaseTTL: 10 * time.Second,
	}
	return &lockService{
		store:     repository.NewStore(slots),
		leases:    repository.NewLeaseTable(),
		validator: validator.NewLockRequestValidator(log),
		ids:       id.NewSequential("lease"),
		now:       clock.Now,
		ttl:       cfg.LeaseTTL,
		cfg:       cfg,
	}
}

func availableSlot(id string) model.Slot {
	return model.Slot{ID: id, Label: "Slot " + id, Status: model.SlotAvailable}
}

func uptr(v uint64) *uint64 {
	return &v
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestAcquire_Success(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"), availableSlot("s2"))
	ctx := context.Background()

	lease, version, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}
	if lease.SlotID != "s1" || lease.OwnerID != "alice" {
		t.Errorf("unexpected lease: %+v", lease)
	}
	wantExpiry := clock.Now().Add(10 * time.Second)
	if !lease.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, lease.ExpiresAt)
	}

	snap := svc.List(ctx, nil)
	if snap.Slots[0].Status != model.SlotLocked || snap.Slots[0].LockedBy != "alice" {
		t.Errorf("expected s1 locked by alice, got %+v", snap.Slots[0])
	}
	if snap.Slots[1].Status != model.SlotAvailable {
		t.Errorf("expected s2 untouched, got %+v", snap.Slots[1])
	}
}

func TestAcquire_Failures(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(svc *lockService, ctx context.Context)
		req      *model.AcquireRequest
		wantCode string
	}{
		{
			name:     "unknown slot",
			req:      &model.AcquireRequest{SlotID: "nope", OwnerID: "alice"},
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:     "stale expected version",
			req:      &model.AcquireRequest{SlotID: "s1", OwnerID: "alice", ExpectedVersion: uptr(99)},
			wantCode: apperrors.CodeVersionConflict,
		},
		{
			name: "slot locked by other owner",
			prepare: func(svc *lockService, ctx context.Context) {
				if _, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "bob"}); err != nil {
					panic(err)
				}
			},
			req:      &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"},
			wantCode: apperrors.CodeLockedByOther,
		},
		{
			name: "re-acquire by the same owner is rejected",
			prepare: func(svc *lockService, ctx context.Context) {
				if _, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"}); err != nil {
					panic(err)
				}
			},
			req:      &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"},
			wantCode: apperrors.CodeLockedByOther,
		},
		{
			name: "slot already booked",
			prepare: func(svc *lockService, ctx context.Context) {
				lease, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "bob"})
				if err != nil {
					panic(err)
				}
				if _, _, err := svc.Confirm(ctx, &model.ConfirmRequest{LeaseID: lease.ID, OwnerID: "bob"}); err != nil {
					panic(err)
				}
			},
			req:      &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"},
			wantCode: apperrors.CodeAlreadyBooked,
		},
		{
			name:     "empty owner id",
			req:      &model.AcquireRequest{SlotID: "s1", OwnerID: ""},
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			svc := newTestService(clock, availableSlot("s1"))
			ctx := context.Background()
			if tt.prepare != nil {
				tt.prepare(svc, ctx)
			}
			before := svc.List(ctx, nil)

			_, _, err := svc.Acquire(ctx, tt.req)
			if code := appCode(t, err); code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, code)
			}

			after := svc.List(ctx, nil)
			if after.Version != before.Version {
				t.Errorf("failed acquire changed version: %d -> %d", before.Version, after.Version)
			}
		})
	}
}

func TestAcquire_PreconditionOrder(t *testing.T) {
	// A stale version and a locked slot at the same time: the version check
	// must win because it runs first.
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"))
	ctx := context.Background()

	if _, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "bob"}); err != nil {
		t.Fatalf("setup acquire failed: %v", err)
	}

	_, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice", ExpectedVersion: uptr(0)})
	if code := appCode(t, err); code != apperrors.CodeVersionConflict {
		t.Errorf("expected VERSION_CONFLICT before LOCKED_BY_OTHER, got %s", code)
	}
}

func TestConfirm_Success(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"))
	ctx := context.Background()

	lease, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	slot, version, err := svc.Confirm(ctx, &model.ConfirmRequest{LeaseID: lease.ID, OwnerID: "alice"})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
	if slot.Status != model.SlotBooked {
		t.Errorf("expected booked slot, got %q", slot.Status)
	}
	if slot.LockedBy != "" {
		t.Errorf("booked slot should carry no owner, got %q", slot.LockedBy)
	}

	// Booked is terminal and the lease is gone.
	if _, _, err := svc.Confirm(ctx, &model.ConfirmRequest{LeaseID: lease.ID, OwnerID: "alice"}); err == nil {
		t.Error("second confirm should fail")
	} else if code := appCode(t, err); code != apperrors.CodeLockNotFound {
		t.Errorf("expected LOCK_NOT_FOUND on second confirm, got %s", code)
	}
}

func TestConfirm_Failures(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"))
	ctx := context.Background()

	lease, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	t.Run("unknown lease", func(t *testing.T) {
		_, _, err := svc.Confirm(ctx, &model.ConfirmRequest{LeaseID: "nope", OwnerID: "alice"})
		if code := appCode(t, err); code != apperrors.CodeLockNotFound {
			t.Errorf("expected LOCK_NOT_FOUND, got %s", code)
		}
	})

	t.Run("owner mismatch is masked as not found", func(t *testing.T) {
		_, _, err := svc.Confirm(ctx, &model.ConfirmRequest{LeaseID: lease.ID, OwnerID: "mallory"})
		if code := appCode(t, err); code != apperrors.CodeLockNotFound {
			t.Errorf("expected LOCK_NOT_FOUND, got %s", code)
		}
	})

	t.Run("failures leave version untouched", func(t *testing.T) {
		if got := svc.List(ctx, nil).Version; got != 1 {
			t.Errorf("expected version 1, got %d", got)
		}
	})
}

func TestConfirm_ExpiredLeaseWithoutSweep(t *testing.T) {
	// Confirm checks expiry directly; it must not depend on the sweeper
	// having run.
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"))
	ctx := context.Background()

	lease, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	clock.Advance(10*time.Second + time.Millisecond)

	_, _, err = svc.Confirm(ctx, &model.ConfirmRequest{LeaseID: lease.ID, OwnerID: "alice"})
	if code := appCode(t, err); code != apperrors.CodeLockExpired {
		t.Errorf("expected LOCK_EXPIRED, got %s", code)
	}
	if got := svc.List(ctx, nil).Version; got != 1 {
		t.Errorf("failed confirm changed version to %d", got)
	}
}

func TestRelease(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"))
	ctx := context.Background()

	lease, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	t.Run("wrong owner is forbidden with no state change", func(t *testing.T) {
		_, err := svc.Release(ctx, &model.ReleaseRequest{LeaseID: lease.ID, OwnerID: "carol"})
		if code := appCode(t, err); code != apperrors.CodeForbidden {
			t.Errorf("expected FORBIDDEN, got %s", code)
		}
		snap := svc.List(ctx, nil)
		if snap.Version != 1 || snap.Slots[0].Status != model.SlotLocked {
			t.Errorf("failed release mutated state: %+v", snap)
		}
	})

	t.Run("owner releases and slot reverts", func(t *testing.T) {
		version, err := svc.Release(ctx, &model.ReleaseRequest{LeaseID: lease.ID, OwnerID: "alice"})
		if err != nil {
			t.Fatalf("release failed: %v", err)
		}
		if version != 2 {
			t.Errorf("expected version 2, got %d", version)
		}
		snap := svc.List(ctx, nil)
		if snap.Slots[0].Status != model.SlotAvailable || snap.Slots[0].LockedBy != "" {
			t.Errorf("expected available slot, got %+v", snap.Slots[0])
		}
	})

	t.Run("released lease cannot be released again", func(t *testing.T) {
		_, err := svc.Release(ctx, &model.ReleaseRequest{LeaseID: lease.ID, OwnerID: "alice"})
		if code := appCode(t, err); code != apperrors.CodeLockNotFound {
			t.Errorf("expected LOCK_NOT_FOUND, got %s", code)
		}
	})
}

func TestList_AfterVersion(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"))
	ctx := context.Background()

	if _, _, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"}); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	t.Run("matching version elides the slot list", func(t *testing.T) {
		snap := svc.List(ctx, uptr(1))
		if snap.Version != 1 {
			t.Errorf("expected version 1, got %d", snap.Version)
		}
		if len(snap.Slots) != 0 {
			t.Errorf("expected empty delta, got %d slots", len(snap.Slots))
		}
	})

	t.Run("stale version returns the full snapshot", func(t *testing.T) {
		snap := svc.List(ctx, uptr(0))
		if len(snap.Slots) != 1 {
			t.Errorf("expected full snapshot, got %d slots", len(snap.Slots))
		}
	})
}

func TestAcquire_ConcurrentOwners(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"))
	ctx := context.Background()

	const workers = 32
	results := make(chan error, workers)
	var start sync.WaitGroup
	start.Add(1)

	for i := 0; i < workers; i++ {
		owner := string(rune('a' + i%26))
		go func(owner string, n int) {
			start.Wait()
			_, _, err := svc.Acquire(ctx, &model.AcquireRequest{
				SlotID:          "s1",
				OwnerID:         owner + "-" + string(rune('0'+n%10)),
				ExpectedVersion: uptr(0),
			})
			results <- err
		}(owner, i)
	}
	start.Done()

	var successes int
	for i := 0; i < workers; i++ {
		err := <-results
		if err == nil {
			successes++
			continue
		}
		code := appCode(t, err)
		if code != apperrors.CodeLockedByOther && code != apperrors.CodeVersionConflict {
			t.Errorf("unexpected rejection code %s", code)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly one winner, got %d", successes)
	}
	if got := svc.List(ctx, nil).Version; got != 1 {
		t.Errorf("expected exactly one version bump, got %d", got)
	}
}

func TestLockProtocol_Scenario(t *testing.T) {
	// End-to-end walk of the optimistic lock-then-confirm flow.
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"))
	ctx := context.Background()

	v0 := svc.List(ctx, nil).Version

	lease, v1, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice", ExpectedVersion: uptr(v0)})
	if err != nil {
		t.Fatalf("alice acquire failed: %v", err)
	}
	if v1 != v0+1 {
		t.Errorf("expected version %d, got %d", v0+1, v1)
	}

	_, _, err = svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "bob", ExpectedVersion: uptr(v1)})
	if code := appCode(t, err); code != apperrors.CodeLockedByOther {
		t.Errorf("expected bob to be rejected with LOCKED_BY_OTHER, got %s", code)
	}
	if got := svc.List(ctx, nil).Version; got != v1 {
		t.Errorf("bob's rejection changed version to %d", got)
	}

	slot, v2, err := svc.Confirm(ctx, &model.ConfirmRequest{LeaseID: lease.ID, OwnerID: "alice"})
	if err != nil {
		t.Fatalf("alice confirm failed: %v", err)
	}
	if v2 != v1+1 {
		t.Errorf("expected version %d, got %d", v1+1, v2)
	}
	if slot.Status != model.SlotBooked {
		t.Errorf("expected booked slot, got %q", slot.Status)
	}
}

func TestVersion_BumpsExactlyOncePerMutation(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(clock, availableSlot("s1"), availableSlot("s2"), availableSlot("s3"))
	ctx := context.Background()

	var version uint64
	step := func(name string, fn func() (uint64, error)) {
		t.Helper()
		got, err := fn()
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		if got != version+1 {
			t.Errorf("%s: expected version %d, got %d", name, version+1, got)
		}
		version = got
	}

	var l1, l2 *model.Lease
	step("acquire s1", func() (uint64, error) {
		lease, v, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s1", OwnerID: "alice"})
		l1 = lease
		return v, err
	})
	step("acquire s2", func() (uint64, error) {
		lease, v, err := svc.Acquire(ctx, &model.AcquireRequest{SlotID: "s2", OwnerID: "bob"})
		l2 = lease
		return v, err
	})
	step("confirm s1", func() (uint64, error) {
		_, v, err := svc.Confirm(ctx, &model.ConfirmRequest{LeaseID: l1.ID, OwnerID: "alice"})
		return v, err
	})
	step("release s2", func() (uint64, error) {
		return svc.Release(ctx, &model.ReleaseRequest{LeaseID: l2.ID, OwnerID: "bob"})
	})
}
