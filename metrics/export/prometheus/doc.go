// Package prometheus renders engine metrics in Prometheus text
// exposition format without depending on a client library.
package prometheus
