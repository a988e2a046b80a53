package notifier

import (
	"sync"

	"slotlock/pkg/logger"
	"slotlock/pkg/model"
)

// Observer receives change events from the notifier. Notify is called from a
// per-subscriber delivery goroutine, never from the mutation critical section,
// so implementations are free to block.
type Observer interface {
	Notify(snap model.Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(snap model.Snapshot)

func (f ObserverFunc) Notify(snap model.Snapshot) {
	f(snap)
}

type subscriber struct {
	obs     Observer
	events  chan model.Snapshot
	done    chan struct{}
	stop    sync.Once
	dropped int
}

func (s *subscriber) close() {
	s.stop.Do(func() { close(s.done) })
}

// Notifier fans accepted mutations out to registered observers. Publish never
// blocks: each subscriber has a bounded buffer drained by its own goroutine,
// and events are dropped when a subscriber lags. Delivery is best-effort and
// per process lifetime; observers that must not miss state catch up from the
// next event's full snapshot. Stale events (version not strictly greater than
// the last delivered one) are discarded before delivery.
type Notifier struct {
	mu     sync.Mutex
	subs   []*subscriber
	buffer int
	log    *logger.Logger
	wg     sync.WaitGroup
	closed bool
}

func New(buffer int, log *logger.Logger) *Notifier {
	if buffer < 1 {
		buffer = 1
	}
	return &Notifier{
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers an observer and returns its unsubscribe handle. The
// handle is idempotent. Delivery is best-effort: an event already buffered
// when the handle fires may still be delivered while the goroutine winds down.
func (n *Notifier) Subscribe(obs Observer) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub := &subscriber{
		obs:    obs,
		events: make(chan model.Snapshot, n.buffer),
		done:   make(chan struct{}),
	}
	n.subs = append(n.subs, sub)

	n.wg.Add(1)
	go n.deliver(sub)

	return func() {
		n.remove(sub)
		sub.close()
	}
}

// Publish queues snap for every current subscriber, in subscription order.
// Called from inside the store's critical section, so it must stay cheap:
// one non-blocking channel send per subscriber.
func (n *Notifier) Publish(snap model.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	for _, sub := range n.subs {
		select {
		case sub.events <- snap:
		default:
			sub.dropped++
			n.log.Debug("Change event dropped for slow subscriber",
				"version", snap.Version,
				"dropped_total", sub.dropped,
			)
		}
	}
}

// Close unsubscribes everything and waits for delivery goroutines to stop.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	n.wg.Wait()
}

func (n *Notifier) deliver(sub *subscriber) {
	defer n.wg.Done()

	var lastVersion uint64
	for {
		select {
		case <-sub.done:
			return
		case snap := <-sub.events:
			if snap.Version <= lastVersion {
				continue
			}
			lastVersion = snap.Version
			sub.obs.Notify(snap)
		}
	}
}

func (n *Notifier) remove(sub *subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}
