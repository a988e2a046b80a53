package config

import "time"

const (
	DefaultPort = "8080"

	DefaultSlotCount = 12

	DefaultLeaseTTL      = 10 * time.Second
	DefaultSweepInterval = 1 * time.Second

	DefaultNotifyBuffer = 16
	DefaultWSSendBuffer = 256

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultKafkaTopic       = "slotlock.changes"
	DefaultKafkaCompression = "snappy"

	DefaultLogLevel = "info"
)
