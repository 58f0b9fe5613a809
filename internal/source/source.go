package source

import (
	"time"

	"codeberg.org/mutker/vamon/internal/errors"
)

const (
	ErrProbeFailed = errors.ErrorCode("source_probe_failed")
	ErrReadFailed  = errors.ErrorCode("source_read_failed")
	ErrNotOpen     = errors.ErrorCode("source_not_open")
)

// Sample is one multi-channel reading. Every sample of a session carries the
// same number of values, fixed by the active source.
type Sample struct {
	At     time.Time
	Values []float64
}

// Source produces one reading per call. Read returns io.EOF when the source
// has no further data (load removed, horizon reached); any other error is a
// hard failure. End-of-stream is a normal termination path, not a fault.
type Source interface {
	// Reset prepares the source for a new session.
	Reset() error

	// Read blocks for one conversion and returns the reading or io.EOF.
	Read() (Sample, error)

	// Channels returns the per-sample value count, fixed per session.
	Channels() int

	// Units returns the display unit label of each channel.
	Units() []string

	// Format returns the CSV verbs for logging one sample, e.g. "%.3f,%.3f".
	// Advisory only.
	Format() string

	// Close releases the underlying device.
	Close() error
}
