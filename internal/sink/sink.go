package sink

import (
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/stats"
)

const (
	ErrOpenFailed  = errors.ErrorCode("sink_open_failed")
	ErrWriteFailed = errors.ErrorCode("sink_write_failed")
)

// Summary describes a finished session for the trailing log block.
// Degenerate marks a session that never collected a sample; such summaries
// carry no statistics and must not derive anything from the sample count.
type Summary struct {
	Samples    int
	Elapsed    time.Duration
	Channels   []stats.ChannelResult
	Degenerate bool
}

// Sink receives the measurement log of one session: a settings header, one
// record per sample, and a summary. Sinks are best-effort collaborators; the
// acquisition loop ignores their errors.
type Sink interface {
	Open() error
	WriteSettings(acq config.Acquisition) error
	WriteSample(elapsed time.Duration, values []float64) error
	WriteSummary(sum Summary) error
	Close() error
}

// LineSink transports pre-formatted log lines. Implementations swallow
// transient transport errors so a flaky network never disturbs sampling.
type LineSink interface {
	Open() error
	Send(line string) error
	Close() error
}
