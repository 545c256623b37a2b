// Package api hosts the optional diagnostics HTTP server. It runs beside the
// stdio protocol channel and never carries tool traffic. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
package api
