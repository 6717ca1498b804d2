// Package prometheus renders Engine metrics in Prometheus text exposition
// format. Counters are named authcore_*_total; the single histogram is
// authcore_authenticate_latency_seconds. Nothing is registered globally:
// callers mount Handler themselves.
package prometheus
