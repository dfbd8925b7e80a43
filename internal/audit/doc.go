// Package audit defines the audit event model and the asynchronous
// dispatcher that decouples sink latency from engine operations.
package audit
