package engine

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

const defaultStatsWindow = 120

// Stats keeps the total frame time of the most recent frames in a ring.
type Stats struct {
	mu     sync.Mutex
	window []float64
	next   int
	full   bool
	frames uint64
}

type StatsSnapshot struct {
	Frames   uint64  `json:"frames"`
	MeanMs   float64 `json:"meanMs"`
	StdDevMs float64 `json:"stdDevMs"`
	P95Ms    float64 `json:"p95Ms"`
	MeanFPS  float64 `json:"meanFps"`
}

func NewStats(size int) *Stats {
	if size <= 0 {
		size = defaultStatsWindow
	}
	return &Stats{window: make([]float64, size)}
}

func (s *Stats) Add(totalMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window[s.next] = totalMs
	s.next++
	if s.next == len(s.window) {
		s.next = 0
		s.full = true
	}
	s.frames++
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	n := s.next
	if s.full {
		n = len(s.window)
	}
	xs := make([]float64, n)
	copy(xs, s.window[:n])
	frames := s.frames
	s.mu.Unlock()

	snap := StatsSnapshot{Frames: frames}
	if n == 0 {
		return snap
	}
	snap.MeanMs, snap.StdDevMs = stat.MeanStdDev(xs, nil)
	if n == 1 {
		snap.StdDevMs = 0
	}
	sort.Float64s(xs)
	snap.P95Ms = stat.Quantile(0.95, stat.Empirical, xs, nil)
	if snap.MeanMs > 0 {
		snap.MeanFPS = 1000 / snap.MeanMs
	}
	return snap
}
