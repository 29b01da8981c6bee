// Package metrics keeps a bounded, process-wide history of recommendation
// timings and derives per-provider and per-model views from it.
package metrics

import (
	"math"
	"sync"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

// DefaultCapacity is the number of samples retained before the oldest is
// evicted.
const DefaultCapacity = 200

// UnknownModel is the bucket for samples recorded without a model id.
const UnknownModel = "unknown"

// Aggregator is a FIFO-bounded buffer of metrics. It is safe for
// concurrent use; queries never mutate the buffer.
type Aggregator struct {
	mu       sync.RWMutex
	capacity int
	samples  []domain.Metric
}

// New creates an aggregator retaining at most capacity samples. A
// non-positive capacity selects DefaultCapacity.
func New(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{
		capacity: capacity,
		samples:  make([]domain.Metric, 0, capacity),
	}
}

// Record appends a sample, evicting the oldest once capacity is exceeded.
func (a *Aggregator) Record(m domain.Metric) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, m)
	if over := len(a.samples) - a.capacity; over > 0 {
		// Shift in place so the backing array does not grow without bound.
		n := copy(a.samples, a.samples[over:])
		clear(a.samples[n:])
		a.samples = a.samples[:n]
	}
}

// Len returns the number of retained samples.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.samples)
}

// Samples returns a copy of the retained samples, oldest first.
func (a *Aggregator) Samples() []domain.Metric {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.Metric, len(a.samples))
	copy(out, a.samples)
	return out
}

// ByProvider partitions the samples into one bucket per known provider,
// preserving arrival order. Every provider has a bucket, possibly empty.
// Samples tagged with any other provider are left out.
func (a *Aggregator) ByProvider() map[domain.Provider][]domain.Metric {
	result := make(map[domain.Provider][]domain.Metric)
	for _, p := range domain.Providers() {
		result[p] = []domain.Metric{}
	}
	for _, s := range a.Samples() {
		if list, ok := result[s.Provider]; ok {
			result[s.Provider] = append(list, s)
		}
	}
	return result
}

// ByModel partitions the samples by model id, preserving arrival order.
// Samples without a model id land in the UnknownModel bucket.
func (a *Aggregator) ByModel() map[string][]domain.Metric {
	result := make(map[string][]domain.Metric)
	for _, s := range a.Samples() {
		key := s.ModelID
		if key == "" {
			key = UnknownModel
		}
		result[key] = append(result[key], s)
	}
	return result
}

// Summary is the rolling average of one bucket.
type Summary struct {
	Count        int    `json:"count"`
	AvgLatencyMs int64  `json:"avgLatencyMs"`
	AvgTtftMs    *int64 `json:"avgTtftMs,omitempty"`
}

// Summary reports, per provider, the sample count, mean latency, and mean
// time-to-first-token over the samples that have one.
func (a *Aggregator) Summary() map[domain.Provider]Summary {
	result := make(map[domain.Provider]Summary)
	for p, list := range a.ByProvider() {
		result[p] = Summarize(list)
	}
	return result
}

// Summarize computes the averages for a list of samples. An empty list
// yields a zero count and latency with no ttft average.
func Summarize(list []domain.Metric) Summary {
	if len(list) == 0 {
		return Summary{}
	}

	var latency, ttft float64
	var ttftCount int
	for _, s := range list {
		latency += s.LatencyMs
		if s.TtftMs != nil {
			ttft += *s.TtftMs
			ttftCount++
		}
	}

	out := Summary{
		Count:        len(list),
		AvgLatencyMs: int64(math.Round(latency / float64(len(list)))),
	}
	if ttftCount > 0 {
		avg := int64(math.Round(ttft / float64(ttftCount)))
		out.AvgTtftMs = &avg
	}
	return out
}
