package api

// API limits and constants.
const (
	// MaxCaptureSize caps manual capture request bodies (base64 images included).
	MaxCaptureSize = 32 << 20

	// Write endpoints are limited per client address.
	writeRatePerSecond = 10
	writeBurst         = 20
)

// Cache-Control header values.
const (
	CacheImmutable = "private, max-age=31536000, immutable"
	CacheNoStore   = "no-store"
)
