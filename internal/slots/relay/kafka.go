package relay

import (
	"context"
	"strconv"
	"time"

	"slotlock/pkg/kafka"
	"slotlock/pkg/logger"
	"slotlock/pkg/model"
)

const (
	eventType      = "slots.changed"
	partitionKey   = "slots" // single key keeps the feed ordered within one partition
	publishTimeout = 5 * time.Second
)

// Relay forwards accepted change events to a Kafka topic, turning the
// in-process change feed into a distributing transport. It runs as a
// notifier subscriber, so a slow or unreachable broker never touches
// the mutation path; a failed publish is logged and dropped, consumers
// recover from the next event's full snapshot.
type Relay struct {
	producer    *kafka.Producer
	source      string
	log         *logger.Logger
	lastVersion uint64 // touched only from the notifier delivery goroutine
}

func New(producer *kafka.Producer, source string, log *logger.Logger) *Relay {
	return &Relay{
		producer: producer,
		source:   source,
		log:      log,
	}
}

// Notify implements notifier.Observer.
func (r *Relay) Notify(snap model.Snapshot) {
	if snap.Version <= r.lastVersion {
		return
	}
	r.lastVersion = snap.Version

	msg := kafka.NewMessage().
		WithKey(partitionKey).
		WithValue(snap).
		WithEventType(eventType).
		WithSource(r.source).
		WithHeader(kafka.HeaderVersion, strconv.FormatUint(snap.Version, 10)).
		Build()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.producer.Publish(ctx, msg); err != nil {
		r.log.Error("Failed to relay change event",
			"version", snap.Version,
			"error", err,
		)
	}
}

func (r *Relay) Close() error {
	return r.producer.Close()
}
