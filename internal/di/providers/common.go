package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// warmupTimeout bounds the hot cache warmup at startup.
	warmupTimeout = 10 * time.Second
)
