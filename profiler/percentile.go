// profiler/percentile.go
package profiler

import (
	"math"
	"sort"
	"sync"
)

// RollingPercentile keeps the most recent samples in a fixed-size window and answers percentile
// queries over them using the nearest-rank method. It is safe for concurrent use.
type RollingPercentile struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewRollingPercentile creates a window holding up to capacity samples. Capacity below 1 is treated as 1.
func NewRollingPercentile(capacity int) *RollingPercentile {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingPercentile{samples: make([]float64, capacity)}
}

// Add records v, evicting the oldest sample once the window is full.
func (r *RollingPercentile) Add(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = v
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of samples currently in the window.
func (r *RollingPercentile) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *RollingPercentile) lenLocked() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

// Percentile returns the p-th percentile (p in [0,1]) of the window, or 0 when it is empty.
func (r *RollingPercentile) Percentile(p float64) float64 {
	r.mu.Lock()
	n := r.lenLocked()
	window := make([]float64, n)
	copy(window, r.samples[:n])
	r.mu.Unlock()

	if n == 0 {
		return 0
	}
	sort.Float64s(window)

	rank := int(math.Ceil(p * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return window[rank-1]
}
