package source

import (
	"io"
	"testing"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthTwoChannels(t *testing.T) {
	src := NewSynth(config.Synth{Channels: 2, Horizon: 60})
	require.NoError(t, src.Reset())

	s, err := src.Read()
	require.NoError(t, err)
	require.Len(t, s.Values, 2)
	assert.False(t, s.At.IsZero())

	// nominal 5 V / 25 mA with unit-amplitude ripple
	assert.InDelta(t, 5.0, s.Values[0], 1.5)
	assert.InDelta(t, 25.0, s.Values[1], 1.5)

	assert.Equal(t, 2, src.Channels())
	assert.Equal(t, []string{"V", "mA"}, src.Units())
	assert.Equal(t, "%.2f,%.1f", src.Format())
}

func TestSynthThreeChannels(t *testing.T) {
	src := NewSynth(config.Synth{Channels: 3, Horizon: 60})
	require.NoError(t, src.Reset())

	s, err := src.Read()
	require.NoError(t, err)
	require.Len(t, s.Values, 3)
	assert.Equal(t, []string{"V", "V", "mA"}, src.Units())
}

func TestSynthInvalidChannelCountFallsBack(t *testing.T) {
	src := NewSynth(config.Synth{Channels: 7})
	assert.Equal(t, 2, src.Channels())
}

func TestSynthHorizon(t *testing.T) {
	src := NewSynth(config.Synth{Channels: 2, Horizon: 1})
	require.NoError(t, src.Reset())

	// pretend the session started well past the horizon
	_, err := src.Read()
	require.NoError(t, err)
	src.started = time.Now().Add(-2 * time.Second)

	_, err = src.Read()
	assert.ErrorIs(t, err, io.EOF)

	// Reset clears the horizon clock
	require.NoError(t, src.Reset())
	_, err = src.Read()
	assert.NoError(t, err)
}
