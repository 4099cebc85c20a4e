// Package prometheus exposes goVerify engine metrics through
// prometheus/client_golang.
//
// [Exporter] is a [prometheus.Collector] that reads an engine snapshot on
// every scrape. Counter names are goverify_*_total; the single histogram is
// goverify_send_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register the
//     Exporter themselves or mount Handler, which uses a private registry.
//   - Mutate engine state.
package prometheus
