package kafka

import (
	"context"
	"time"

	"slotlock/pkg/logger"
)

// LoggingMiddleware logs every publish with its outcome and latency.
func LoggingMiddleware(log *logger.Logger) ProducerMiddleware {
	return func(ctx context.Context, msg Message, next func(ctx context.Context, msg Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		duration := time.Since(start)

		if err != nil {
			log.Error("Kafka publish failed",
				"key", msg.Key,
				"event_id", msg.Headers[HeaderEventID],
				"event_type", msg.Headers[HeaderEventType],
				"duration_ms", duration.Milliseconds(),
				"error", err,
			)
			return err
		}

		log.Debug("Kafka message published",
			"key", msg.Key,
			"event_id", msg.Headers[HeaderEventID],
			"event_type", msg.Headers[HeaderEventType],
			"duration_ms", duration.Milliseconds(),
		)
		return nil
	}
}
