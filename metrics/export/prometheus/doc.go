// Package prometheus exports goIdentity engine metrics to Prometheus.
//
// [PrometheusExporter] can either be registered with a client_golang registry
// as a Collector or mounted directly through [PrometheusExporter.Handler].
// Counter names are prefixed goidentity_ and end in _total; the single
// histogram is goidentity_exchange_latency_seconds. Nothing is registered in
// the global registry.
package prometheus
