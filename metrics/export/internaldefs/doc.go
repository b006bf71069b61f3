// Package internaldefs holds the metric names and bucket boundaries shared by
// the Prometheus and OpenTelemetry exporters.
//
// Both exporters read these definitions so a metric has the same name
// everywhere. This package performs no I/O.
package internaldefs
