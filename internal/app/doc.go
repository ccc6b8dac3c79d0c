// Package app wires the ingestion engine together and owns its lifecycle.
//
// NewApplication resolves the data directories, installs the OpenTelemetry
// providers and builds the history store, the snapshot processor and the
// services on top of them. The same Application backs both the HTTP server
// and the command line tool; the latter never starts the server and calls
// Close instead of Stop.
//
// # Routes
//
//	GET    /healthz                  readiness, 503 when degraded
//	GET    /healthz/live             liveness
//	GET    /metrics                  prometheus exposition
//	GET    /api/version
//	GET    /api/stats
//	       /api/instruments/...      see the transport/http package
//
// Probes and /metrics sit outside the rate limiter and the request timeout.
//
// # Shutdown
//
// Run serves until SIGINT or SIGTERM, then drains in-flight requests within
// the configured shutdown timeout and flushes telemetry. Initialization
// errors are returned; the package never calls os.Exit.
package app
