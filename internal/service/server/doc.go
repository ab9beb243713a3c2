// Package server runs the task alarm daemon: it opens the durable store,
// starts the alarm manager and serves the gRPC API (plus an optional
// Prometheus endpoint) until its context is cancelled.
package server
