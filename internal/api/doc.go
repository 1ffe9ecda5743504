// Package api hosts the HTTP server, middleware, and REST handlers through
// which the fetcher submits pages and operators inspect workers. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/pages/{kind} to enqueue a fetched page.
//   - GET /v1/workers and POST /v1/workers/{kind}/restart for supervision.
package api
