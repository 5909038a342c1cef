// Package prometheus exposes caseAuth engine metrics through prometheus/client_golang.
//
// [Collector] reads an engine snapshot on every scrape and emits const metrics:
// counters named caseauth_*_total and the caseauth_login_latency_seconds
// histogram. Register it on a registry of your choice or serve [Collector.Handler].
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry on its own.
//   - Mutate engine state.
package prometheus
