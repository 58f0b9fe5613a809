package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/session"
	"codeberg.org/mutker/vamon/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalShowFrames(t *testing.T) {
	var buf bytes.Buffer
	scr := NewTerminalWriter(&buf)

	require.NoError(t, scr.Show([]string{"line one", "line two"}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\x1b[H"), "frame must home the cursor")
	assert.Contains(t, out, "line one\x1b[K")
	assert.Contains(t, out, "line two\x1b[K")
	assert.True(t, strings.HasSuffix(out, "\x1b[J"), "frame must erase stale tail")
}

func TestTerminalClear(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTerminalWriter(&buf).Clear())
	assert.Equal(t, "\x1b[2J\x1b[H", buf.String())
}

func TestStackToggleWraps(t *testing.T) {
	acq := config.Acquisition{Interval: 1, Unit: "s", Plots: true}
	s := NewStack(NewTerminalWriter(&bytes.Buffer{}), acq, []string{"V", "mA"})

	// values, progress, two plots, back to values
	for i := 0; i < 4; i++ {
		s.Toggle()
	}
	s.mu.Lock()
	view := s.view
	s.mu.Unlock()
	assert.Zero(t, view)
}

func TestStackRendersValues(t *testing.T) {
	var buf bytes.Buffer
	acq := config.Acquisition{Interval: 1, Unit: "s"}
	s := NewStack(NewTerminalWriter(&buf), acq, []string{"V", "mA"})

	s.Begin()
	s.PushSample([]float64{5.0, 25.4}, 1500*time.Millisecond)
	buf.Reset()
	s.Render()

	out := buf.String()
	assert.Contains(t, out, "5.00 V")
	assert.Contains(t, out, "25.40 mA")
	assert.Contains(t, out, "1s  1.5s")
}

func TestStackRendersProgress(t *testing.T) {
	var buf bytes.Buffer
	acq := config.Acquisition{Interval: 1, Unit: "s", Duration: 2}
	s := NewStack(NewTerminalWriter(&buf), acq, []string{"V"})

	s.Begin()
	s.Progress(time.Minute)
	s.Toggle()
	buf.Reset()
	s.Render()

	// one of two minutes elapsed
	assert.Contains(t, buf.String(), "1.0m / 2m")
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", sparkline(nil, 10))
	assert.Equal(t, "▁█", sparkline([]float64{0, 1}, 10))
	assert.Equal(t, "▅▅▅", sparkline([]float64{2, 2, 2}, 10), "flat history sits mid-scale")

	wide := sparkline(make([]float64, 100), 10)
	assert.Equal(t, 10, len([]rune(wide)), "history clips to screen width")
}

func TestFormatResult(t *testing.T) {
	res := &session.Result{
		State:   session.Completed,
		Elapsed: 4 * time.Second,
		Samples: 8,
		Channels: []stats.ChannelResult{
			{Min: 4.9, Mean: 5.0, Max: 5.1},
		},
	}

	lines := FormatResult(res, []string{"V"}, "s")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "completed  8 samples in 0.1m (2.0/s)")
	assert.Contains(t, lines[2], "min 4.90  mean 5.00  max 5.10")

	assert.Equal(t, []string{"no session yet"}, FormatResult(nil, nil, "s"))
	assert.Equal(t, []string{"aborted  no samples"},
		FormatResult(&session.Result{State: session.Aborted, Degenerate: true}, nil, "s"))
}
