package source

import (
	"io"
	"math"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
)

// conversionDelay imitates the conversion time of a real ADC.
const conversionDelay = 10 * time.Millisecond

// SynthSource generates sine/cosine waveforms around nominal supply values.
// With two channels it imitates voltage and current; with three it adds a
// second voltage rail. Unbounded sessions end with io.EOF once the horizon
// passes, so that duration=0 behaves like a load being removed.
type SynthSource struct {
	channels int
	horizon  time.Duration
	started  time.Time
}

var _ Source = (*SynthSource)(nil)

// NewSynth creates a synthetic source from configuration.
func NewSynth(cfg config.Synth) *SynthSource {
	channels := cfg.Channels
	if channels != 3 {
		channels = 2
	}

	return &SynthSource{
		channels: channels,
		horizon:  time.Duration(cfg.Horizon) * time.Second,
	}
}

func (s *SynthSource) Reset() error {
	s.started = time.Time{}
	return nil
}

func (s *SynthSource) Read() (Sample, error) {
	time.Sleep(conversionDelay)
	now := time.Now()

	if s.started.IsZero() {
		s.started = now
	}
	if s.horizon > 0 && now.Sub(s.started) > s.horizon {
		return Sample{}, io.EOF
	}

	t := float64(now.Sub(s.started)) / float64(time.Second)

	var values []float64
	if s.channels == 2 {
		values = []float64{
			5 + t/10 + math.Sin(t),
			25 + t/10 + math.Cos(t),
		}
	} else {
		values = []float64{
			1 + t/100 + math.Sin(t),
			5 + t/10 + math.Sin(t),
			25 + t/10 + math.Cos(t),
		}
	}

	return Sample{At: now, Values: values}, nil
}

func (s *SynthSource) Channels() int {
	return s.channels
}

func (s *SynthSource) Units() []string {
	if s.channels == 2 {
		return []string{"V", "mA"}
	}

	return []string{"V", "V", "mA"}
}

func (s *SynthSource) Format() string {
	if s.channels == 2 {
		return "%.2f,%.1f"
	}

	return "%.2f,%.2f,%.1f"
}

func (s *SynthSource) Close() error {
	return nil
}
