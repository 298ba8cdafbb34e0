// Package api hosts the operator HTTP server that runs alongside a discovery
// run. Routes:
//   - GET /healthz for liveness probes.
//   - GET /readyz, which reports ready once the pipeline is wired.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs/last for the most recent run summary.
package api
