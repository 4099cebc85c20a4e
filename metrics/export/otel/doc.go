// Package otel publishes goVerify engine metrics as OpenTelemetry
// observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and,
// for the send latency histogram, one gauge per cumulative bucket plus count
// and sum gauges. A single callback reads the engine snapshot on each
// collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
