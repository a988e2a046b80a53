package config

const (
	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvSlotCount = "SLOT_COUNT"

	EnvLeaseTTL      = "LEASE_TTL"
	EnvSweepInterval = "SWEEP_INTERVAL"

	EnvNotifyBuffer = "NOTIFY_BUFFER"
	EnvWSSendBuffer = "WS_SEND_BUFFER"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvKafkaBrokers     = "KAFKA_BROKERS"
	EnvKafkaTopic       = "KAFKA_TOPIC"
	EnvKafkaCompression = "KAFKA_COMPRESSION"
)
