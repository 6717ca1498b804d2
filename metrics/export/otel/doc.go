// Package otel publishes Engine metrics through an OpenTelemetry
// metric.Meter. Counters map to observable counters and the latency
// histogram to one cumulative gauge per bucket, with the names used by the
// Prometheus exporter.
package otel
