// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// JobLease is how long a worker owns a claimed import job before another
// worker may reclaim it.
const JobLease = 2 * time.Minute

// DownloadGrant is the lifetime of a signed report download link.
const DownloadGrant = 10 * time.Minute
