package service

import (
	"sync"
	"time"

	"slotlock/pkg/logger"
)

// leaseReclaimer is the slice of LockService the sweeper needs.
type leaseReclaimer interface {
	SweepExpired() int
}

// Sweeper periodically reclaims expired leases. It is an explicit task with a
// cancellation handle rather than a bare timer so tests can drive sweeps
// deterministically through the service's SweepExpired.
type Sweeper struct {
	svc      leaseReclaimer
	interval time.Duration
	log      *logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewSweeper(svc leaseReclaimer, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Sweeper) Start() {
	w.startOnce.Do(func() {
		w.log.Info("Expiry sweeper started", "interval", w.interval)
		go w.run()
	})
}

// Stop cancels the sweep loop and waits for it to exit. Safe to call more
// than once, and safe to call without Start.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	w.startOnce.Do(func() {
		close(w.done)
	})
	<-w.done
	w.log.Info("Expiry sweeper stopped")
}

func (w *Sweeper) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.svc.SweepExpired()
		}
	}
}
