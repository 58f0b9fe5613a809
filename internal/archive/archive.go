// Package archive persists finished sessions and their samples to sqlite,
// so measurements survive the device being unplugged.
package archive

import (
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/sink"
)

// Recorder is a structured sink over the sqlite repository. One Recorder
// follows the session lifecycle: WriteSettings opens a session row,
// WriteSample appends to it, WriteSummary seals it.
type Recorder struct {
	repo    Repository
	units   []string
	session int64
}

var _ sink.Sink = (*Recorder)(nil)

// NewRecorder creates a Recorder for a source with the given channel units.
func NewRecorder(cfg Config, units []string) (*Recorder, error) {
	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err // Already wrapped with appropriate error
	}

	return &Recorder{
		repo:  repo,
		units: units,
	}, nil
}

func (r *Recorder) Open() error {
	return nil
}

func (r *Recorder) WriteSettings(acq config.Acquisition) error {
	id, err := r.repo.BeginSession(acq, strings.Join(r.units, ","))
	if err != nil {
		return err
	}
	r.session = id

	return nil
}

func (r *Recorder) WriteSample(elapsed time.Duration, values []float64) error {
	if r.session == 0 {
		return errors.New(ErrNoSession)
	}

	return r.repo.RecordSample(
		r.session,
		float64(elapsed)/float64(time.Millisecond),
		joinValues(values),
	)
}

func (r *Recorder) WriteSummary(sum sink.Summary) error {
	if r.session == 0 {
		return errors.New(ErrNoSession)
	}

	err := r.repo.FinishSession(r.session, sum, r.units)
	r.session = 0

	return err
}

func (r *Recorder) Close() error {
	return r.repo.Close()
}

func joinValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}

	return strings.Join(parts, ",")
}
