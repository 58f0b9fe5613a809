package sink

import (
	"io"
	"os"

	"codeberg.org/mutker/vamon/internal/errors"
)

// Console writes log lines to a stream, stdout by default. This is the
// direct descendant of logging over the USB serial console: pipe stdout to
// capture a measurement.
type Console struct {
	w io.Writer
}

var _ LineSink = (*Console)(nil)

// NewConsole creates a console line sink on stdout.
func NewConsole() *Console {
	return &Console{w: os.Stdout}
}

// NewConsoleWriter creates a console line sink on an arbitrary stream.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Open() error {
	return nil
}

func (c *Console) Send(line string) error {
	if _, err := io.WriteString(c.w, line); err != nil {
		return errors.Wrap(ErrWriteFailed, err)
	}

	return nil
}

func (c *Console) Close() error {
	return nil
}
