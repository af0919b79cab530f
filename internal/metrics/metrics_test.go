package metrics

import "testing"

type captureBackend struct {
	counters   map[string]float64
	histograms map[string][]float64
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters[name] += delta
}

func (c *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	c.histograms[name] = append(c.histograms[name], value)
}

func TestNoBackendIsNoOp(t *testing.T) {
	SetBackend(nil)
	// Must not panic.
	IncCounter(UploadsTotal, 1, nil)
	ObserveHistogram(HTTPDuration, 0.1, Labels{"status": "200"})
}

func TestSetBackendRoutesCalls(t *testing.T) {
	b := &captureBackend{counters: map[string]float64{}, histograms: map[string][]float64{}}
	SetBackend(b)
	defer SetBackend(nil)

	IncCounter(UploadsTotal, 2, Labels{"categoria": "notas"})
	IncCounter(UploadsTotal, 1, nil)
	ObserveHistogram(HTTPDuration, 0.25, nil)

	if b.counters[UploadsTotal] != 3 {
		t.Fatalf("counter = %v", b.counters[UploadsTotal])
	}
	if len(b.histograms[HTTPDuration]) != 1 || b.histograms[HTTPDuration][0] != 0.25 {
		t.Fatalf("histogram = %v", b.histograms[HTTPDuration])
	}
}
