package source

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/errors"
	"go.bug.st/serial"
)

const (
	// readSlice bounds a single port read so a silent bridge cannot wedge
	// the caller; the no-load clock is checked between slices.
	readSlice = 200 * time.Millisecond

	// maxLineBuffer caps partial-line carryover; a bridge that never sends
	// a newline is emitting noise, not measurements.
	maxLineBuffer = 4096
)

// bridgePort is the slice of serial.Port the source needs. Tests substitute
// a scripted implementation.
type bridgePort interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// SerialSource reads measurements from an INA260 MCU bridge over a serial
// port. The bridge emits one CSV line per conversion:
//
//	<volts>,<milliamps>[,<milliwatts>]
//
// Readings below the configured voltage/current thresholds count as "no
// load": before the load has ever been seen they are skipped, afterwards
// they end the stream. A load that never appears within the no-load timeout
// ends the stream too, whether the bridge keeps sending sub-threshold lines
// or goes silent entirely. All of these surface as io.EOF, never as a hard
// failure.
type SerialSource struct {
	cfg config.Serial

	port     bridgePort
	buf      []byte
	loaded   bool
	resetAt  time.Time
	lastData time.Time
}

var _ Source = (*SerialSource)(nil)

// NewSerial creates a serial-bridge source from configuration. The port is
// opened on the first Reset.
func NewSerial(cfg config.Serial) *SerialSource {
	return &SerialSource{cfg: cfg}
}

func (s *SerialSource) Reset() error {
	if s.port == nil {
		port, err := serial.Open(s.cfg.Port, &serial.Mode{BaudRate: s.cfg.BaudRate})
		if err != nil {
			return errors.Wrap(ErrNotOpen, err).
				WithMessage("failed to open serial port " + s.cfg.Port)
		}
		// Bounded reads keep the source responsive to the no-load clock
		// even when the bridge sends nothing at all.
		if err := port.SetReadTimeout(readSlice); err != nil {
			port.Close()
			return errors.Wrap(ErrNotOpen, err)
		}
		s.port = port
	}

	s.buf = s.buf[:0]
	s.loaded = false
	s.resetAt = time.Now()
	s.lastData = s.resetAt

	return nil
}

func (s *SerialSource) Read() (Sample, error) {
	if s.port == nil {
		return Sample{}, errors.New(ErrNotOpen)
	}

	timeout := time.Duration(s.cfg.NoLoadTimeout) * time.Second

	for {
		line, ok, err := s.nextLine()
		if err != nil {
			return Sample{}, errors.Wrap(ErrReadFailed, err)
		}
		if !ok {
			// Nothing arrived within one read slice; a bridge that has
			// been silent past the timeout is treated like a removed load.
			if timeout > 0 && time.Since(s.lastData) > timeout {
				return Sample{}, io.EOF
			}
			continue
		}

		values, err := s.parseLine(line)
		if err != nil {
			// A corrupt line is noise on the wire, not a failure
			continue
		}

		if values[0] >= s.cfg.MinVoltage && values[1] >= s.cfg.MinCurrent {
			s.loaded = true
			return Sample{At: time.Now(), Values: values}, nil
		}

		if s.loaded {
			// Load removed after measurement started
			return Sample{}, io.EOF
		}

		if timeout > 0 && time.Since(s.resetAt) > timeout {
			// Load never appeared
			return Sample{}, io.EOF
		}
	}
}

// nextLine returns the next complete non-empty line. ok is false when one
// read slice passed without any data, so the caller can check its clocks.
func (s *SerialSource) nextLine() (string, bool, error) {
	for {
		if i := bytes.IndexByte(s.buf, '\n'); i >= 0 {
			line := strings.TrimSpace(string(s.buf[:i]))
			s.buf = append(s.buf[:0], s.buf[i+1:]...)
			if line == "" {
				continue
			}
			return line, true, nil
		}

		if len(s.buf) > maxLineBuffer {
			s.buf = s.buf[:0]
		}

		chunk := make([]byte, 256)
		n, err := s.port.Read(chunk)
		if err != nil {
			return "", false, err
		}
		if n == 0 {
			return "", false, nil
		}

		s.lastData = time.Now()
		s.buf = append(s.buf, chunk[:n]...)
	}
}

func (s *SerialSource) Channels() int {
	if s.cfg.WithPower {
		return 3
	}

	return 2
}

func (s *SerialSource) Units() []string {
	if s.cfg.WithPower {
		return []string{"V", "mA", "mW"}
	}

	return []string{"V", "mA"}
}

func (s *SerialSource) Format() string {
	if s.cfg.WithPower {
		return "%.3f,%.3f,%.3f"
	}

	return "%.3f,%.3f"
}

func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}

	err := s.port.Close()
	s.port = nil
	if err != nil {
		return errors.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

// parseLine parses one bridge line into channel values, clamping current to
// zero the way the sensor driver does.
func (s *SerialSource) parseLine(line string) ([]float64, error) {
	parts := strings.Split(line, ",")
	if len(parts) != s.Channels() {
		return nil, errors.WithData(ErrReadFailed, line)
	}

	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.Wrap(ErrReadFailed, err)
		}
		values[i] = v
	}

	if values[1] < 0 {
		values[1] = 0
	}

	return values, nil
}
