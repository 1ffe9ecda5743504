// Package cmd hosts the socialgraph-parser command line.
//
// Architecture overview:
//   - HTTP API: internal/api.Server accepts fetched pages on POST /v1/pages/{kind}, assigns each a task ID, and
//     enqueues it on the bounded queue for that kind. A full queue answers 503 so fetchers back off. Worker status
//     and manual restarts live under /v1/workers.
//   - Queues & workers: one bounded in-memory queue per page kind (profile, follow), sized by config.Queues. Each
//     queue is drained by exactly one worker; internal/supervisor restarts a failed worker against the same queue so
//     buffered pages are never lost.
//   - Parse pipeline: internal/extract decodes the JSON state embedded in the page's data container,
//     internal/normalize flattens profiles, and internal/pipeline stores records, marks discovered users, and
//     forwards tokens to the frontier. Pages without usable state are skipped; malformed ones are quarantined.
//   - Backends: users go to memory or Postgres, the frontier to memory or Pub/Sub, the dedup set to memory or Redis,
//     and quarantined pages to memory, a local directory, or GCS.
//   - Configuration & plumbing: Viper populates config from a file and PARSER_* env vars; zap provides structured
//     logging; Prometheus metrics are exported on /metrics.
//
// Quick checklist:
//   - Run locally: go run . serve --config config.yaml (or rely solely on env overrides).
//   - Inspect a saved page: go run . parse --kind profile --token some-user page.html
//   - The process reacts to SIGINT/SIGTERM by draining HTTP, stopping workers, and closing backends.
package cmd
