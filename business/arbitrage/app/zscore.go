package app

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
)

// Signal is a z-score reading against the rolling window that preceded it.
type Signal struct {
	Z      decimal.Decimal
	Mean   decimal.Decimal
	StdDev decimal.Decimal
}

// RollingZScore keeps the last Window samples per key and scores each new
// sample against them. z = (mean - price) / stddev, so a positive z means the
// price sits below its recent mean.
type RollingZScore struct {
	mu      sync.Mutex
	window  int
	samples map[string][]float64
}

// NewRollingZScore creates a RollingZScore. Windows under 2 are raised to 2.
func NewRollingZScore(window int) *RollingZScore {
	if window < 2 {
		window = 2
	}
	return &RollingZScore{window: window, samples: make(map[string][]float64)}
}

// Observe scores price and then adds it to the window. ok is false until
// half a window has been seen or while the window has no variance.
func (r *RollingZScore) Observe(key string, price decimal.Decimal) (Signal, bool) {
	p := price.InexactFloat64()

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.samples[key]
	sig, ok := score(prev, p, r.window/2)

	prev = append(prev, p)
	if len(prev) > r.window {
		prev = prev[len(prev)-r.window:]
	}
	r.samples[key] = prev

	return sig, ok
}

// Len is the number of samples held for key.
func (r *RollingZScore) Len(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples[key])
}

func score(window []float64, p float64, minSamples int) (Signal, bool) {
	if len(window) == 0 || len(window) < minSamples {
		return Signal{}, false
	}

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))

	var ss float64
	for _, v := range window {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(window)))
	if std == 0 {
		return Signal{}, false
	}

	return Signal{
		Z:      decimal.NewFromFloat((mean - p) / std),
		Mean:   decimal.NewFromFloat(mean),
		StdDev: decimal.NewFromFloat(std),
	}, true
}
