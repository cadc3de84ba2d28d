// Package telemetry provides Prometheus metrics for the recipe execution
// engine: run and step counters, per-asset feedback severity counts, and
// step duration histograms.
package telemetry
