package stats

import (
	"math"

	"codeberg.org/mutker/vamon/internal/errors"
)

const ErrNoSamples = errors.ErrorCode("stats_no_samples")

// ChannelResult holds the summary statistics of one channel over a session.
type ChannelResult struct {
	Min  float64
	Mean float64
	Max  float64
}

// Aggregator maintains running min/sum/max per channel over an unbounded
// number of samples.
//
// Max starts at 0, not -Inf: a channel that only ever reads negative values
// reports max=0 until a positive sample arrives. This matches the behavior of
// earlier firmware revisions and is visible in archived logs, so it is kept.
type Aggregator struct {
	n   int
	min []float64
	sum []float64
	max []float64
}

// NewAggregator creates an aggregator for dim channels.
func NewAggregator(dim int) *Aggregator {
	a := &Aggregator{
		min: make([]float64, dim),
		sum: make([]float64, dim),
		max: make([]float64, dim),
	}
	a.Reset()

	return a
}

// Reset clears all counters and aggregates.
func (a *Aggregator) Reset() {
	a.n = 0
	for i := range a.min {
		a.min[i] = math.Inf(1)
		a.sum[i] = 0
		a.max[i] = 0
	}
}

// Add records one sample. Values beyond the aggregator's dimension are
// ignored; a shorter sample updates only the channels it covers.
func (a *Aggregator) Add(values []float64) {
	a.n++
	for i, v := range values {
		if i == len(a.min) {
			break
		}
		a.sum[i] += v
		if v < a.min[i] {
			a.min[i] = v
		}
		if v > a.max[i] {
			a.max[i] = v
		}
	}
}

// Count returns the number of samples added since the last reset.
func (a *Aggregator) Count() int {
	return a.n
}

// Get returns per-channel min/mean/max. Callers must add at least one sample
// first.
func (a *Aggregator) Get() ([]ChannelResult, error) {
	if a.n == 0 {
		return nil, errors.New(ErrNoSamples)
	}

	results := make([]ChannelResult, len(a.min))
	for i := range results {
		results[i] = ChannelResult{
			Min:  a.min[i],
			Mean: a.sum[i] / float64(a.n),
			Max:  a.max[i],
		}
	}

	return results, nil
}

// Mean returns only the per-channel mean values.
func (a *Aggregator) Mean() ([]float64, error) {
	if a.n == 0 {
		return nil, errors.New(ErrNoSamples)
	}

	means := make([]float64, len(a.sum))
	for i, s := range a.sum {
		means[i] = s / float64(a.n)
	}

	return means, nil
}
