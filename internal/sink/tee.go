package sink

import (
	"time"

	"codeberg.org/mutker/vamon/internal/config"
)

// Tee fans the measurement log out to several sinks. Every sink sees every
// write; the first error is reported after all sinks have been tried.
type Tee struct {
	sinks []Sink
}

var _ Sink = (*Tee)(nil)

// NewTee combines sinks into one. A tee over zero sinks discards everything.
func NewTee(sinks ...Sink) *Tee {
	return &Tee{sinks: sinks}
}

func (t *Tee) Open() error {
	return t.each(func(s Sink) error { return s.Open() })
}

func (t *Tee) WriteSettings(acq config.Acquisition) error {
	return t.each(func(s Sink) error { return s.WriteSettings(acq) })
}

func (t *Tee) WriteSample(elapsed time.Duration, values []float64) error {
	return t.each(func(s Sink) error { return s.WriteSample(elapsed, values) })
}

func (t *Tee) WriteSummary(sum Summary) error {
	return t.each(func(s Sink) error { return s.WriteSummary(sum) })
}

func (t *Tee) Close() error {
	return t.each(func(s Sink) error { return s.Close() })
}

func (t *Tee) each(fn func(Sink) error) error {
	var first error
	for _, s := range t.sinks {
		if err := fn(s); err != nil && first == nil {
			first = err
		}
	}

	return first
}
