// Package prometheus renders accountcore metrics in Prometheus text
// exposition format.
//
// [NewExporter] wraps an engine and exposes an [http.Handler]. Counter names
// are prefixed accountcore_ and suffixed _total; the single histogram is
// accountcore_validate_latency_seconds.
//
// Nothing is registered in a global registry; callers mount the Handler.
package prometheus
