// Package internaldefs holds the metric name table shared by the
// Prometheus and OpenTelemetry exporters so both emit identical series
// names.
package internaldefs
