package session_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/session"
	"codeberg.org/mutker/vamon/internal/sink"
	"codeberg.org/mutker/vamon/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptSource plays a scripted value sequence and records when each read
// started, so tests can check the sampling cadence.
type scriptSource struct {
	mu        sync.Mutex
	dim       int
	value     func(read int) []float64
	maxReads  int // io.EOF once this many reads succeeded; 0 = unbounded
	resetErr  error
	readErr   error
	reads     int
	readTimes []time.Time
}

func constantSource(values ...float64) *scriptSource {
	return &scriptSource{
		dim:   len(values),
		value: func(int) []float64 { return values },
	}
}

func (s *scriptSource) Reset() error { return s.resetErr }

func (s *scriptSource) Read() (source.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return source.Sample{}, s.readErr
	}
	if s.maxReads > 0 && s.reads >= s.maxReads {
		return source.Sample{}, io.EOF
	}

	s.reads++
	s.readTimes = append(s.readTimes, time.Now())

	return source.Sample{At: time.Now(), Values: s.value(s.reads)}, nil
}

func (s *scriptSource) Channels() int { return s.dim }

func (s *scriptSource) Units() []string {
	units := make([]string, s.dim)
	for i := range units {
		units[i] = "V"
	}
	return units
}

func (s *scriptSource) Format() string { return "%.2f" }
func (s *scriptSource) Close() error   { return nil }

func (s *scriptSource) times() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.readTimes...)
}

// captureSink records every sink call. sampleDelay simulates a slow
// transport so cadence tests can show logging cost does not shift samples.
type captureSink struct {
	mu          sync.Mutex
	sampleDelay time.Duration
	opened      bool
	closed      bool
	settings    *config.Acquisition
	samples     [][]float64
	elapsed     []time.Duration
	summary     *sink.Summary
}

func (c *captureSink) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = true
	return nil
}

func (c *captureSink) WriteSettings(acq config.Acquisition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = &acq
	return nil
}

func (c *captureSink) WriteSample(elapsed time.Duration, values []float64) error {
	if c.sampleDelay > 0 {
		time.Sleep(c.sampleDelay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, append([]float64(nil), values...))
	c.elapsed = append(c.elapsed, elapsed)
	return nil
}

func (c *captureSink) WriteSummary(sum sink.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = &sum
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

func (c *captureSink) finalSummary() *sink.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

type countingViews struct {
	begins  atomic.Int32
	pushes  atomic.Int32
	renders atomic.Int32
	toggles atomic.Int32
}

func (v *countingViews) Begin()                               { v.begins.Add(1) }
func (v *countingViews) PushSample([]float64, time.Duration)  { v.pushes.Add(1) }
func (v *countingViews) Progress(time.Duration)               {}
func (v *countingViews) Toggle()                              { v.toggles.Add(1) }
func (v *countingViews) Render()                              { v.renders.Add(1) }

type funcKeys struct {
	poll func() (string, bool)
}

func (k *funcKeys) Poll() (string, bool) { return k.poll() }

func msSettings(interval, update int) config.Acquisition {
	return config.Acquisition{Interval: interval, Unit: "ms", Update: update}
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	_, err := session.New(session.Options{
		Settings: config.Acquisition{Interval: 0, Unit: "s"},
		Source:   constantSource(1),
	})
	assert.Error(t, err)

	_, err = session.New(session.Options{Settings: msSettings(10, 0)})
	assert.Error(t, err)
}

func TestRunCompletesOnEndOfStream(t *testing.T) {
	src := constantSource(5.0, 25.0)
	src.maxReads = 6 // probe plus five samples
	out := &captureSink{}

	loop, err := session.New(session.Options{
		Settings: msSettings(10, 0),
		Source:   src,
		Sink:     out,
	})
	require.NoError(t, err)

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.Completed, res.State)
	assert.Equal(t, 5, res.Samples)
	assert.False(t, res.Degenerate)
	require.Len(t, res.Channels, 2)
	assert.InDelta(t, 5.0, res.Channels[0].Min, 1e-9)
	assert.InDelta(t, 5.0, res.Channels[0].Mean, 1e-9)
	assert.InDelta(t, 5.0, res.Channels[0].Max, 1e-9)
	assert.InDelta(t, 25.0, res.Channels[1].Mean, 1e-9)

	assert.True(t, out.opened)
	assert.True(t, out.closed)
	require.NotNil(t, out.settings)
	assert.Equal(t, 5, out.count())
	sum := out.finalSummary()
	require.NotNil(t, sum)
	assert.Equal(t, 5, sum.Samples)
}

func TestRunProbeFailurePublishesNothing(t *testing.T) {
	src := constantSource(1.0)
	src.readErr = errors.New(source.ErrProbeFailed)
	out := &captureSink{}

	loop, err := session.New(session.Options{
		Settings: msSettings(10, 0),
		Source:   src,
		Sink:     out,
	})
	require.NoError(t, err)

	res, err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.HasCode(err, session.ErrProbeFailed))

	assert.Zero(t, out.count())
	assert.Nil(t, out.finalSummary())
	assert.True(t, out.closed)
}

func TestRunResetFailureIsProbeFailure(t *testing.T) {
	src := constantSource(1.0)
	src.resetErr = errors.New(source.ErrNotOpen)

	loop, err := session.New(session.Options{
		Settings: msSettings(10, 0),
		Source:   src,
	})
	require.NoError(t, err)

	res, err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.HasCode(err, session.ErrProbeFailed))
}

func TestRunUserStopAborts(t *testing.T) {
	src := constantSource(3.3, 100.0)
	out := &captureSink{}
	keys := &funcKeys{poll: func() (string, bool) {
		if out.count() >= 3 {
			return session.KeyStop, true
		}
		return "", false
	}}

	loop, err := session.New(session.Options{
		Settings: msSettings(200, 0),
		Source:   src,
		Sink:     out,
		Keys:     keys,
	})
	require.NoError(t, err)

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.Aborted, res.State)
	assert.Equal(t, 3, res.Samples)
	require.Len(t, res.Channels, 2)
	assert.InDelta(t, 3.3, res.Channels[0].Mean, 1e-9)

	// an aborted session still publishes its summary
	sum := out.finalSummary()
	require.NotNil(t, sum)
	assert.Equal(t, 3, sum.Samples)
}

func TestRunDurationExpiry(t *testing.T) {
	src := constantSource(1.0)

	acq := msSettings(100, 0)
	acq.Duration = 1 // duration counts in the next unit up: one second
	loop, err := session.New(session.Options{
		Settings: acq,
		Source:   src,
	})
	require.NoError(t, err)

	started := time.Now()
	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.Completed, res.State)
	assert.GreaterOrEqual(t, res.Samples, 8)
	assert.LessOrEqual(t, res.Samples, 11)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestRunOversampleAveraging(t *testing.T) {
	src := &scriptSource{
		dim:      1,
		maxReads: 5,
		value:    func(read int) []float64 { return []float64{float64(read)} },
	}

	acq := msSettings(10, 0)
	acq.Oversample = 4
	loop, err := session.New(session.Options{
		Settings: acq,
		Source:   src,
	})
	require.NoError(t, err)

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	// probe consumes read 1; the single sample averages reads 2..5
	assert.Equal(t, session.Completed, res.State)
	require.Equal(t, 1, res.Samples)
	assert.InDelta(t, 3.5, res.Channels[0].Min, 1e-9)
	assert.InDelta(t, 3.5, res.Channels[0].Mean, 1e-9)
	assert.InDelta(t, 3.5, res.Channels[0].Max, 1e-9)
}

func TestRunDegenerateSession(t *testing.T) {
	src := constantSource(1.0)
	src.maxReads = 1 // probe succeeds, first sample read hits end-of-stream
	out := &captureSink{}

	loop, err := session.New(session.Options{
		Settings: msSettings(10, 0),
		Source:   src,
		Sink:     out,
	})
	require.NoError(t, err)

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.Completed, res.State)
	assert.True(t, res.Degenerate)
	assert.Zero(t, res.Samples)
	assert.Empty(t, res.Channels)
	assert.Zero(t, res.Elapsed)

	sum := out.finalSummary()
	require.NotNil(t, sum)
	assert.True(t, sum.Degenerate)
}

func TestRunIntervalIsStartToStart(t *testing.T) {
	src := constantSource(1.0)
	src.maxReads = 7
	out := &captureSink{sampleDelay: 20 * time.Millisecond}

	loop, err := session.New(session.Options{
		Settings: msSettings(50, 0),
		Source:   src,
		Sink:     out,
	})
	require.NoError(t, err)

	_, err = loop.Run(context.Background())
	require.NoError(t, err)

	// readTimes[0] is the probe; cadence holds between sample reads even
	// though each sample also spends 20ms in the sink.
	times := src.times()
	require.GreaterOrEqual(t, len(times), 4)
	for i := 2; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, gap, 40*time.Millisecond, "gap %d too short: %v", i, gap)
		assert.LessOrEqual(t, gap, 120*time.Millisecond, "gap %d too long: %v", i, gap)
	}
}

func TestRunDrivesViewsAndToggle(t *testing.T) {
	src := constantSource(1.0, 2.0)
	src.maxReads = 11
	views := &countingViews{}

	var toggled atomic.Bool
	keys := &funcKeys{poll: func() (string, bool) {
		if toggled.CompareAndSwap(false, true) {
			return session.KeyToggle, true
		}
		return "", false
	}}

	loop, err := session.New(session.Options{
		Settings: msSettings(30, 20),
		Source:   src,
		Views:    views,
		Keys:     keys,
	})
	require.NoError(t, err)

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), views.begins.Load())
	assert.Equal(t, int32(res.Samples), views.pushes.Load())
	assert.Positive(t, views.renders.Load())
	assert.Equal(t, int32(1), views.toggles.Load())
}

func TestRunContextCancelAborts(t *testing.T) {
	src := constantSource(1.0)

	loop, err := session.New(session.Options{
		Settings: msSettings(50, 0),
		Source:   src,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(120 * time.Millisecond)
		cancel()
	}()

	started := time.Now()
	res, err := loop.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, session.Aborted, res.State)
	assert.Positive(t, res.Samples)
	assert.Less(t, time.Since(started), time.Second)
}

func TestRunSnapshotsPlots(t *testing.T) {
	src := constantSource(7.0, 8.0)
	src.maxReads = 4

	acq := msSettings(10, 0)
	acq.Plots = true
	loop, err := session.New(session.Options{
		Settings: acq,
		Source:   src,
	})
	require.NoError(t, err)

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Plots, 2)
	require.Len(t, res.Plots[0], 3)
	assert.InDelta(t, 7.0, res.Plots[0][0], 1e-9)
	assert.InDelta(t, 8.0, res.Plots[1][2], 1e-9)
}
