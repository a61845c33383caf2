// Package metrics exposes Prometheus counters for downloads, webhook
// processing, and uploads. All recording methods are nil-safe so callers can
// run without a collector wired in.
package metrics
