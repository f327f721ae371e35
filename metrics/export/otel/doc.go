// Package otel publishes accountcore counters and the validation latency
// histogram through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket. A single callback reads the
// engine snapshot on each collection cycle. Callers own the MeterProvider.
package otel
