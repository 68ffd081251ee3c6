package birdelevator

import (
	"fmt"
	"math"
)

// History stores the most recent readings of one sensor and keeps their
// average. Once full, the oldest sample is overwritten first.
//
// History is not safe for concurrent use.
type History struct {
	samples []float64
	idx     int
	n       int

	average float64
	max     float64
	min     float64
}

// NewHistory returns an empty history holding up to size samples. A size
// below 1 falls back to Size.
func NewHistory(size int) *History {
	if size < 1 {
		size = Size
	}
	return &History{
		samples: make([]float64, size),
	}
}

// Store appends a sample, evicting the oldest one if the history is full,
// and updates the average. NaN and infinite samples are rejected with
// ErrNonFinite and leave the history untouched.
func (h *History) Store(sample float64) error {
	if !finite(sample) {
		return fmt.Errorf("birdelevator: could not store %v: %w", sample, ErrNonFinite)
	}

	old := h.samples[h.idx]
	full := h.n == len(h.samples)

	h.samples[h.idx] = sample
	h.idx++
	h.idx %= len(h.samples)

	if !full {
		h.n++
	}
	h.average = mean(h.samples[:h.n])

	switch {
	case full && (old == h.max || old == h.min):
		h.max = sample
		h.min = sample
		for _, s := range h.samples[:h.n] {
			h.minmax(s)
		}
	case h.n == 1:
		h.max = sample
		h.min = sample
	default:
		h.minmax(sample)
	}

	return nil
}

func (h *History) minmax(v float64) {
	if v > h.max {
		h.max = v
	}
	if v < h.min {
		h.min = v
	}
}

// Average returns the mean of the stored samples. It returns false if
// nothing has been stored yet.
func (h *History) Average() (float64, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.average, true
}

// Last returns the most recent sample.
func (h *History) Last() (float64, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.samples[(h.idx+len(h.samples)-1)%len(h.samples)], true
}

// Spread returns the difference between the largest and the smallest
// stored sample.
func (h *History) Spread() float64 {
	if h.n == 0 {
		return 0
	}
	return h.max - h.min
}

// Samples returns a copy of the stored samples, oldest first.
func (h *History) Samples() []float64 {
	out := make([]float64, 0, h.n)
	start := 0
	if h.n == len(h.samples) {
		start = h.idx
	}
	for i := 0; i < h.n; i++ {
		out = append(out, h.samples[(start+i)%len(h.samples)])
	}
	return out
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	return h.n
}

// Cap returns the maximum number of samples kept.
func (h *History) Cap() int {
	return len(h.samples)
}

// Reset empties the history.
func (h *History) Reset() {
	for i := range h.samples {
		h.samples[i] = 0
	}
	h.idx = 0
	h.n = 0
	h.average = 0
	h.max = 0
	h.min = 0
}

// mean returns the arithmetic mean of a. Only the populated entries are
// passed in, so early averages are not pulled towards zero.
func mean(a []float64) float64 {
	sum := 0.0
	for _, v := range a {
		sum += v
	}
	if !math.IsInf(sum, 0) {
		return sum / float64(len(a))
	}

	// the sum overflowed, scale each value first.
	m := 0.0
	for _, v := range a {
		m += v / float64(len(a))
	}
	return m
}
