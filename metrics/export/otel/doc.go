// Package otel bridges engine metrics to OpenTelemetry observable
// instruments.
package otel
