// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs/{kind} to queue a sync run; GET /v1/runs and
//     /v1/runs/{run_id} for run history.
//   - GET /v1/recruits and /v1/portal to scrape a listing on demand.
package api
