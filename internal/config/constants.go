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
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const RetentionJobInterval = 5 * time.Minute

// Default rate limiting
const DefaultRateLimitPerMin = 120

// Websocket connection tuning
const (
	WSWriteWait      = 10 * time.Second
	WSPingPeriod     = 30 * time.Second
	WSReadTimeout    = 60 * time.Second
	WSMaxMessageSize = 64 << 10
	WSSendBuffer     = 128

	// Per-user budget for inbound signaling frames.
	WSFrameLimitPerMin = 300
)
