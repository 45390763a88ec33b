// Package timeouts defines shared timeout constants used across binaries.
// Centralizing the durations keeps the worker and CLI boundaries from
// drifting apart.
package timeouts

import "time"

// HTTPRequest caps one request to the external stats site.
const HTTPRequest = 30 * time.Second

// HTTPRetryBackoff is the pause before the single retry of a failed
// stats-site request.
const HTTPRetryBackoff = 1 * time.Second

// Shutdown limits how long a binary waits to flush telemetry during
// graceful shutdown.
const Shutdown = 5 * time.Second
