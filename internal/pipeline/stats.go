package pipeline

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// statsWindow is how many recent frame timings are kept
const statsWindow = 300

// Stats summarizes per-frame processing time over the recent window
type Stats struct {
	Samples      int     `json:"samples"`
	MeanMS       float64 `json:"mean_ms"`
	StdDevMS     float64 `json:"stddev_ms"`
	P95MS        float64 `json:"p95_ms"`
	EffectiveFPS float64 `json:"effective_fps"`
}

type timings struct {
	mu      sync.Mutex
	samples []float64 // milliseconds, ring buffer
	next    int
	started time.Time
	frames  uint64
	last    time.Time
}

func newTimings(start time.Time) *timings {
	return &timings{samples: make([]float64, 0, statsWindow), started: start}
}

func (t *timings) observe(now time.Time, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ms := float64(elapsed) / float64(time.Millisecond)
	if len(t.samples) < statsWindow {
		t.samples = append(t.samples, ms)
	} else {
		t.samples[t.next] = ms
		t.next = (t.next + 1) % statsWindow
	}
	t.frames++
	t.last = now
}

func (t *timings) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{Samples: len(t.samples)}
	if len(t.samples) == 0 {
		return s
	}

	s.MeanMS, s.StdDevMS = stat.MeanStdDev(t.samples, nil)
	if len(t.samples) == 1 {
		s.StdDevMS = 0
	}
	sorted := append([]float64(nil), t.samples...)
	sort.Float64s(sorted)
	s.P95MS = stat.Quantile(0.95, stat.Empirical, sorted, nil)

	if wall := t.last.Sub(t.started).Seconds(); wall > 0 {
		s.EffectiveFPS = float64(t.frames) / wall
	}
	return s
}
