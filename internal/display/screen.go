// Package display renders the instrument's views on an ANSI terminal. It is
// deliberately dumb: callers push state, the screen draws whole frames, and
// draw failures never propagate into the sampling path.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Screen is a frame-oriented output device.
type Screen interface {
	// Size returns the usable width and height in character cells.
	Size() (width, height int)

	// Show replaces the visible frame with the given lines.
	Show(lines []string) error

	// Clear blanks the screen.
	Clear() error
}

const (
	fallbackWidth  = 80
	fallbackHeight = 24
)

// Terminal draws frames with ANSI escapes. Frames are repainted in place
// (home + erase-to-end-of-line) rather than cleared, to avoid flicker at
// fast update rates.
type Terminal struct {
	out io.Writer
	fd  int
}

// NewTerminal draws to stdout. The console measurement sink must be disabled
// when a Terminal is active, since both would interleave on the same stream.
func NewTerminal() *Terminal {
	return &Terminal{out: os.Stdout, fd: int(os.Stdout.Fd())}
}

// NewTerminalWriter draws to an arbitrary writer; sizing falls back to
// 80x24. Used in tests.
func NewTerminalWriter(out io.Writer) *Terminal {
	return &Terminal{out: out, fd: -1}
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (t *Terminal) Size() (int, int) {
	if t.fd >= 0 {
		if w, h, err := term.GetSize(t.fd); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}

	return fallbackWidth, fallbackHeight
}

func (t *Terminal) Show(lines []string) error {
	width, height := t.Size()

	var frame strings.Builder
	frame.WriteString("\x1b[H")
	for i, line := range lines {
		if i >= height {
			break
		}
		if len(line) > width {
			line = line[:width]
		}
		frame.WriteString(line)
		frame.WriteString("\x1b[K\r\n")
	}
	frame.WriteString("\x1b[J")

	_, err := fmt.Fprint(t.out, frame.String())

	return err
}

func (t *Terminal) Clear() error {
	_, err := fmt.Fprint(t.out, "\x1b[2J\x1b[H")

	return err
}
