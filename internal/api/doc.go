// Package api exposes the daemon's HTTP surface: liveness, readiness based on
// the last relay run, run status and Prometheus metrics.
package api
