// Package input reads single keystrokes from a raw-mode terminal and maps
// them to instrument actions. One background goroutine owns stdin; Poll and
// Wait consume from it without blocking each other.
package input

import (
	"context"
	"os"

	"golang.org/x/term"

	"codeberg.org/mutker/vamon/internal/errors"
)

const (
	ErrNoTTY  = errors.ErrorCode("input_no_tty")
	ErrClosed = errors.ErrorCode("input_closed")
)

// Actions. KeyStop and KeyToggle line up with the session's key contract.
const (
	ActionStart  = "START"
	ActionStop   = "STOP"
	ActionToggle = "TOGGLE"
	ActionConfig = "CONFIG"
	ActionExit   = "EXIT"
	ActionNext   = "NEXT"
	ActionClear  = "CLR"
)

// Keymap maps raw bytes to actions. Unmapped bytes are dropped.
type Keymap map[byte]string

const (
	keyCtrlC     = 0x03
	keyTab       = 0x09
	keyEnter     = 0x0d
	keyBackspace = 0x7f
)

// ReadyKeymap is active between sessions.
func ReadyKeymap() Keymap {
	return Keymap{
		' ':      ActionStart,
		'r':      ActionStart,
		'c':      ActionConfig,
		'v':      ActionToggle,
		keyTab:   ActionToggle,
		'q':      ActionExit,
		keyCtrlC: ActionExit,
	}
}

// ActiveKeymap is active while a session runs.
func ActiveKeymap() Keymap {
	return Keymap{
		' ':      ActionStop,
		's':      ActionStop,
		'q':      ActionStop,
		keyCtrlC: ActionStop,
		'v':      ActionToggle,
		keyTab:   ActionToggle,
	}
}

// EditKeymap is active in the settings editor. Digits map to themselves.
func EditKeymap() Keymap {
	km := Keymap{
		keyEnter:     ActionNext,
		keyBackspace: ActionClear,
		keyCtrlC:     ActionExit,
		'q':          ActionExit,
	}
	for d := byte('0'); d <= '9'; d++ {
		km[d] = string(d)
	}

	return km
}

// Reader owns stdin in raw mode for its lifetime. Close restores the
// terminal; it must run even on abnormal exit paths.
//
// A Reader is single-use per process: after Close the read loop can stay
// parked in one last stdin read until a key arrives or the process exits,
// because a blocking file read cannot be interrupted portably. Reclaiming
// stdin for a second Reader would need a /dev/tty reopen; nothing here
// re-opens, so the parked read is left to process teardown.
type Reader struct {
	fd    int
	old   *term.State
	bytes chan byte
	done  chan struct{}
}

// NewReader switches stdin to raw mode and starts the read loop. Fails with
// ErrNoTTY when stdin is not a terminal, which callers treat as headless
// operation.
func NewReader() (*Reader, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New(ErrNoTTY)
	}

	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(ErrNoTTY, err)
	}

	r := &Reader{
		fd:    fd,
		old:   old,
		bytes: make(chan byte, 8),
		done:  make(chan struct{}),
	}
	go r.readLoop()

	return r, nil
}

func (r *Reader) readLoop() {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		select {
		case r.bytes <- buf[0]:
		case <-r.done:
			return
		default:
			// a full buffer means nobody is listening; drop the key
		}
	}
}

// Poll returns a pending action without blocking.
func (r *Reader) Poll(km Keymap) (string, bool) {
	for {
		select {
		case b := <-r.bytes:
			if action, ok := km[b]; ok {
				return action, true
			}
			// unmapped key, keep draining
		default:
			return "", false
		}
	}
}

// Wait blocks until a mapped key arrives or the context ends.
func (r *Reader) Wait(ctx context.Context, km Keymap) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-r.done:
			return "", errors.New(ErrClosed)
		case b := <-r.bytes:
			if action, ok := km[b]; ok {
				return action, nil
			}
		}
	}
}

// Drain discards any keys buffered before a state change.
func (r *Reader) Drain() {
	for {
		select {
		case <-r.bytes:
		default:
			return
		}
	}
}

// Close restores the terminal state.
func (r *Reader) Close() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)

	if err := term.Restore(r.fd, r.old); err != nil {
		return errors.Wrap(ErrClosed, err)
	}

	return nil
}
