package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerReadTimeout     = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Uploads wait on the inference provider, so the request timeout has to
// cover INFERENCE_TIMEOUT_SECONDS plus artifact writes.
const ServerRequestTimeout = 5 * time.Minute

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Slots held in redis expire after this long if the owning process dies
// before releasing them.
const AdmissionSlotTTL = 15 * time.Minute
