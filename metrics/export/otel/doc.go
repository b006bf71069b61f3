// Package otel publishes goIdentity engine metrics through OpenTelemetry.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and, per latency histogram, a bucket gauge keyed by the "le" attribute and
// a sample-count gauge. A single callback reads the engine snapshot on each
// collection. The caller owns the MeterProvider.
package otel
