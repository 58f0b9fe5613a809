package sink

import (
	"fmt"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/scale"
)

// Writer formats the measurement log and hands finished lines to a
// LineSink. The line format is stable across firmware generations and is
// consumed by downstream tooling; do not reformat.
type Writer struct {
	out       LineSink
	units     []string
	sampleFmt string

	intFac  float64
	durFac  float64
	durUnit string
	unit    string
}

var _ Sink = (*Writer)(nil)

// NewWriter creates a line-format sink for a source with the given channel
// units and sample format verbs.
func NewWriter(out LineSink, units []string, format string) *Writer {
	return &Writer{
		out:       out,
		units:     units,
		sampleFmt: "%.1f," + format + "\n",
	}
}

func (w *Writer) Open() error {
	return w.out.Open()
}

func (w *Writer) Close() error {
	return w.out.Close()
}

// WriteSettings emits the comment-prefixed header block.
func (w *Writer) WriteSettings(acq config.Acquisition) error {
	var err error
	if w.intFac, err = scale.Factor(acq.Unit); err != nil {
		return err
	}
	if w.durUnit, err = scale.DurationUnit(acq.Unit); err != nil {
		return err
	}
	if w.durFac, err = scale.DurationFactor(acq.Unit); err != nil {
		return err
	}
	w.unit = acq.Unit

	w.send("#\n")
	w.send(fmt.Sprintf("#Interval:   %d%s\n", acq.Interval, acq.Unit))
	if acq.Oversample > 0 {
		w.send(fmt.Sprintf("#Oversampling: %dX\n", acq.Oversample))
	}
	w.send(fmt.Sprintf("#Duration:     %d%s\n", acq.Duration, w.durUnit))
	w.send(fmt.Sprintf("#Update:       %dms\n", acq.Update))
	w.send("#\n")

	return nil
}

// WriteSample emits one CSV record: elapsed milliseconds at one decimal,
// then the channel values in the source's own precision.
func (w *Writer) WriteSample(elapsed time.Duration, values []float64) error {
	args := make([]any, 0, len(values)+1)
	args = append(args, float64(elapsed)/float64(time.Millisecond))
	for _, v := range values {
		args = append(args, v)
	}

	w.send(fmt.Sprintf(w.sampleFmt, args...))

	return nil
}

// WriteSummary emits the trailing comment block. Degenerate sessions report
// only the sample count; every figure derived from it is skipped.
func (w *Writer) WriteSummary(sum Summary) error {
	w.send("#\n")

	if sum.Degenerate || sum.Samples == 0 {
		w.send("#Samples: 0\n")
		return nil
	}

	elapsed := float64(sum.Elapsed) / float64(time.Second)
	if elapsed <= 0 {
		// Single sample at t0; nothing sensible to derive from it
		w.send(fmt.Sprintf("#Samples: %d\n", sum.Samples))
		return nil
	}

	w.send(fmt.Sprintf("#Duration: %.1f%s\n", elapsed/w.durFac, w.durUnit))
	w.send(fmt.Sprintf("#Samples: %d (%.1f/s)\n", sum.Samples, float64(sum.Samples)/elapsed))
	w.send(fmt.Sprintf("#Mean Interval: %.1f%s\n", elapsed/w.intFac/float64(sum.Samples), w.unit))
	w.send("#Min,Mean,Max\n")
	for i, ch := range sum.Channels {
		unit := ""
		if i < len(w.units) {
			unit = w.units[i]
		}
		w.send(fmt.Sprintf("#%.2f%s,%.2f%s,%.2f%s\n", ch.Min, unit, ch.Mean, unit, ch.Max, unit))
	}

	return nil
}

func (w *Writer) send(line string) {
	// Transport errors are the transport's problem
	_ = w.out.Send(line)
}
