package dispatch

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ackTunerWindow bounds how many latency samples are retained.
const ackTunerWindow = 256

// ackTunerFloor is the minimum deadline the tuner may suggest.
const ackTunerFloor = 5 * time.Second

// AckTuner shortens acknowledgement deadlines based on observed latencies.
// When responders consistently acknowledge fast, waiting the full configured
// deadline before re-dispatching only delays the patient; the tuner suggests
// a deadline near the 95th latency percentile instead. It never suggests
// more than the configured value.
type AckTuner struct {
	mu      sync.Mutex
	samples []float64 // seconds, ring-buffered
	next    int
	full    bool
}

// NewAckTuner creates an empty tuner.
func NewAckTuner() *AckTuner {
	return &AckTuner{samples: make([]float64, 0, ackTunerWindow)}
}

// Observe records the latency of one acknowledged assignment.
func (t *AckTuner) Observe(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) < ackTunerWindow {
		t.samples = append(t.samples, latency.Seconds())
		return
	}
	t.samples[t.next] = latency.Seconds()
	t.next = (t.next + 1) % ackTunerWindow
	t.full = true
}

// Suggest returns the deadline to use given the configured one. With fewer
// than 20 samples the configured deadline is returned unchanged.
func (t *AckTuner) Suggest(configured time.Duration) time.Duration {
	t.mu.Lock()
	n := len(t.samples)
	sorted := make([]float64, n)
	copy(sorted, t.samples)
	t.mu.Unlock()

	if n < 20 {
		return configured
	}
	sort.Float64s(sorted)
	q95 := stat.Quantile(0.95, stat.Empirical, sorted, nil)
	suggested := time.Duration(q95 * 1.5 * float64(time.Second))
	if suggested < ackTunerFloor {
		suggested = ackTunerFloor
	}
	if suggested > configured {
		return configured
	}
	return suggested
}
