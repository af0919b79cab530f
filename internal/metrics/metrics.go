// Package metrics is a minimal instrumentation facade. Application code
// emits counters and histograms through package-level functions; an
// optional Backend installed at startup receives them. With no backend
// installed every call is a no-op, so instrumented paths cost nothing in
// tests and in deployments without a metrics sink.
package metrics

import "sync/atomic"

// Labels are free-form metric dimensions (e.g. "categoria", "status").
type Labels map[string]string

// Backend receives emitted metrics. Implementations must be safe for
// concurrent use; handlers call these from request goroutines.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

var backend atomic.Pointer[Backend]

// SetBackend installs the process-wide backend. Pass nil to return to
// no-op behavior. Call once at startup before serving traffic.
func SetBackend(b Backend) {
	if b == nil {
		backend.Store(nil)
		return
	}
	backend.Store(&b)
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	if p := backend.Load(); p != nil {
		(*p).IncCounter(name, delta, labels)
	}
}

// ObserveHistogram records one sample of the named distribution.
func ObserveHistogram(name string, value float64, labels Labels) {
	if p := backend.Load(); p != nil {
		(*p).ObserveHistogram(name, value, labels)
	}
}

// Metric names emitted by the application. Backends may ignore names they
// do not recognize.
const (
	UploadsTotal       = "painel_uploads_total"
	UploadRecordsTotal = "painel_upload_records_total"
	UploadBytesTotal   = "painel_upload_bytes_total"
	ChartsTotal        = "painel_charts_total"
	HTTPRequestsTotal  = "painel_http_requests_total"
	HTTPDuration       = "painel_http_request_duration_seconds"
	DecodeDuration     = "painel_decode_duration_seconds"
)
