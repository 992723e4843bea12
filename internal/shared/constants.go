package shared

import "time"

// HTTP Client Configuration
const (
	DefaultPredictionTimeout = 30 * time.Second
	DefaultDialTimeout       = 5 * time.Second
	DefaultTLSTimeout        = 5 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
)

// Image Configuration
const (
	DefaultJPEGQuality = 85
	MaxUploadSize      = 10 << 20 // 10 MB
	MaxUploadSizeLabel = "10M"
)

// API Configuration
const (
	APIKeyLength       = 32
	DefaultListenAddr  = ":80"
	PredictionKeyName  = "Prediction-Key"
	OctetStreamContent = "application/octet-stream"
)

// Rate Limit Configuration
const (
	DefaultRateLimit  = 30
	RateLimitWindow   = 1 * time.Minute
	RateLimitCallWait = 500 * time.Millisecond
)
