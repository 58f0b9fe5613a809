// Package session drives one acquisition: timed sampling, aggregation, and
// the cooperating view-refresh and key-polling activities. The loop owns the
// timeline; collaborators (source, sink, views, keys) hang off narrow
// interfaces so the core runs unchanged against test doubles.
package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/logger"
	"codeberg.org/mutker/vamon/internal/scale"
	"codeberg.org/mutker/vamon/internal/sink"
	"codeberg.org/mutker/vamon/internal/source"
	"codeberg.org/mutker/vamon/internal/stats"
)

const ErrProbeFailed = errors.ErrorCode("session_probe_failed")

const (
	// PlotDepth is the per-channel trend window kept for plotting.
	PlotDepth = 64

	// keyPollPeriod bounds how quickly a stop key is noticed.
	keyPollPeriod = 100 * time.Millisecond

	// maxSleepSlice bounds stop-flag latency during long interval sleeps.
	maxSleepSlice = time.Second

	// initialRenderCost seeds the render-time estimate until the first
	// measured redraw replaces it.
	initialRenderCost = 50 * time.Millisecond
)

// State is the lifecycle of one session.
type State int

const (
	Idle State = iota
	Running
	Completed
	Aborted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case Failed:
		return "failed"
	}

	return "unknown"
}

// Result is the immutable outcome of one session, handed to the caller when
// all activities have quiesced. Degenerate results carry no statistics.
type Result struct {
	State      State
	Elapsed    time.Duration
	Samples    int
	Channels   []stats.ChannelResult
	Plots      [][]float64
	Degenerate bool
}

// Views is the display collaborator. Calls are fire-and-forget; render
// failures must never reach the sampling loop.
type Views interface {
	// Begin resets the views for a new session.
	Begin()

	// PushSample publishes the latest accepted sample.
	PushSample(values []float64, elapsed time.Duration)

	// Progress publishes the session's elapsed time.
	Progress(elapsed time.Duration)

	// Toggle cycles to the next view.
	Toggle()

	// Render redraws the current view.
	Render()
}

// Keys is the input collaborator for a running session. Poll is non-blocking
// and returns one of KeyStop or KeyToggle.
type Keys interface {
	Poll() (string, bool)
}

const (
	KeyStop   = "STOP"
	KeyToggle = "TOGGLE"
)

// Options wires a Loop. Sink, Views, and Keys may be nil.
type Options struct {
	Settings config.Acquisition
	Source   source.Source
	Sink     sink.Sink
	Views    Views
	Keys     Keys
}

// Loop is the acquisition state machine. One Loop runs one session.
type Loop struct {
	acq   config.Acquisition
	src   source.Source
	out   sink.Sink
	views Views
	keys  Keys

	interval time.Duration
	length   time.Duration // 0 = unbounded

	agg  *stats.Aggregator
	ring *stats.Ring

	start time.Time // set before the aux goroutines launch

	stop       atomic.Bool
	abort      atomic.Bool
	nextSample atomic.Int64 // unix nanos of the next scheduled read
}

// New validates the settings and prepares a Loop.
func New(opts Options) (*Loop, error) {
	if opts.Source == nil {
		return nil, errors.WithMessage(errors.ErrInvalidArgument, "session requires a source")
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}

	intFac, err := scale.Factor(opts.Settings.Unit)
	if err != nil {
		return nil, err
	}
	durFac, err := scale.DurationFactor(opts.Settings.Unit)
	if err != nil {
		return nil, err
	}

	out := opts.Sink
	if out == nil {
		out = sink.NewTee()
	}

	dim := opts.Source.Channels()

	return &Loop{
		acq:      opts.Settings,
		src:      opts.Source,
		out:      out,
		views:    opts.Views,
		keys:     opts.Keys,
		interval: time.Duration(float64(opts.Settings.Interval) * intFac * float64(time.Second)),
		length:   time.Duration(float64(opts.Settings.Duration) * durFac * float64(time.Second)),
		agg:      stats.NewAggregator(dim),
		ring:     stats.NewRing(dim, PlotDepth),
	}, nil
}

// Run executes one session and returns its Result once sampling, view
// refresh, and key polling have all stopped. A probe failure returns an
// error and no Result; the caller's previous result stays untouched.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	l.stop.Store(false)
	l.abort.Store(false)
	l.agg.Reset()
	l.ring.Reset()
	if l.views != nil {
		l.views.Begin()
	}

	if err := l.out.Open(); err != nil {
		logger.Warn().Err(err).Msg("log sink failed to open")
	}
	if err := l.out.WriteSettings(l.acq); err != nil {
		logger.Debug().Err(err).Msg("log sink rejected settings header")
	}

	// Probe before timing starts: a source that cannot deliver a first
	// reading fails the session without publishing anything.
	if err := l.src.Reset(); err != nil {
		l.closeSink()
		return nil, errors.Wrap(ErrProbeFailed, err)
	}
	if _, err := l.src.Read(); err != nil {
		l.closeSink()
		return nil, errors.Wrap(ErrProbeFailed, err)
	}

	start := time.Now()
	l.start = start
	var endAt time.Time
	if l.length > 0 {
		endAt = start.Add(l.length)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.pollKeys(ctx)
	}()
	go func() {
		defer wg.Done()
		l.refreshViews(ctx)
	}()

	samples := 0
	var lastRead, lastSample time.Time

	for !l.stopped(ctx) {
		if !endAt.IsZero() && !time.Now().Before(endAt) {
			break
		}

		// The sampling period runs start-of-read to start-of-read, so the
		// cost of oversampling and logging does not accumulate as drift.
		if !lastRead.IsZero() {
			budget := l.interval - time.Since(lastRead)
			if budget < 0 {
				budget = 0
			}
			l.nextSample.Store(time.Now().Add(budget).UnixNano())
			if !l.sleep(ctx, budget) {
				break
			}
		}

		lastRead = time.Now()
		values, err := l.acquire()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn().Err(err).Msg("source stopped mid-session")
			}
			break
		}

		now := time.Now()
		elapsed := now.Sub(start)
		lastSample = now
		samples++

		l.agg.Add(values)
		l.ring.Add(values)
		if err := l.out.WriteSample(elapsed, values); err != nil {
			logger.Debug().Err(err).Msg("dropped sample record")
		}
		if l.views != nil {
			l.views.PushSample(values, elapsed)
		}
	}

	// Shutdown contract: every activity quiesces before the result exists.
	l.stop.Store(true)
	wg.Wait()

	res := l.publish(start, lastSample, samples)
	if err := l.out.WriteSummary(l.summary(res)); err != nil {
		logger.Debug().Err(err).Msg("dropped summary")
	}
	l.closeSink()

	return res, nil
}

// acquire reads one accepted sample, averaging oversample raw reads when
// configured. The division happens once at the end, not as a running mean.
func (l *Loop) acquire() ([]float64, error) {
	if l.acq.Oversample <= 1 {
		s, err := l.src.Read()
		if err != nil {
			return nil, err
		}
		return s.Values, nil
	}

	var sum []float64
	for i := 0; i < l.acq.Oversample; i++ {
		s, err := l.src.Read()
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = make([]float64, len(s.Values))
		}
		for j := range sum {
			if j < len(s.Values) {
				sum[j] += s.Values[j]
			}
		}
	}
	for j := range sum {
		sum[j] /= float64(l.acq.Oversample)
	}

	return sum, nil
}

// publish builds the session result. Zero collected samples yield a
// degenerate result instead of dividing by the count.
func (l *Loop) publish(start, lastSample time.Time, samples int) *Result {
	state := Completed
	if l.abort.Load() {
		state = Aborted
	}

	if samples == 0 {
		return &Result{State: state, Degenerate: true}
	}

	channels, err := l.agg.Get()
	if err != nil {
		// unreachable with samples > 0, but never publish half a result
		return &Result{State: state, Degenerate: true}
	}

	res := &Result{
		State:    state,
		Elapsed:  lastSample.Sub(start),
		Samples:  samples,
		Channels: channels,
	}
	if l.acq.Plots {
		res.Plots = l.ring.Snapshot()
	}

	return res
}

func (l *Loop) summary(res *Result) sink.Summary {
	return sink.Summary{
		Samples:    res.Samples,
		Elapsed:    res.Elapsed,
		Channels:   res.Channels,
		Degenerate: res.Degenerate,
	}
}

// pollKeys watches for user input while the session runs.
func (l *Loop) pollKeys(ctx context.Context) {
	if l.keys == nil {
		return
	}

	for l.sleep(ctx, keyPollPeriod) {
		key, ok := l.keys.Poll()
		if !ok {
			continue
		}

		switch key {
		case KeyToggle:
			if l.views != nil {
				l.views.Toggle()
			}
		case KeyStop:
			l.abort.Store(true)
			l.stop.Store(true)
			return
		}
	}
}

// refreshViews redraws the current view on the configured period. A redraw
// that would land within the estimated render cost of the next sample is
// deferred until just after that sample, keeping sampling on schedule. The
// estimate is last cycle's measured cost, not a smoothed average.
func (l *Loop) refreshViews(ctx context.Context) {
	if l.views == nil || l.acq.Update == 0 {
		return
	}

	period := time.Duration(l.acq.Update) * time.Millisecond
	renderCost := initialRenderCost

	for l.sleep(ctx, period) {
		gap := time.Until(time.Unix(0, l.nextSample.Load()))
		if gap > 0 && gap < renderCost && renderCost < l.interval {
			if !l.sleep(ctx, gap+10*time.Millisecond) {
				return
			}
		}

		started := time.Now()
		l.views.Progress(started.Sub(l.start))
		l.views.Render()
		renderCost = time.Since(started)
	}
}

// sleep suspends for d in bounded slices so the stop flag is observed within
// maxSleepSlice even during long interval waits. Returns false once the
// session is stopping.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	for d > 0 {
		if l.stopped(ctx) {
			return false
		}

		slice := d
		if slice > maxSleepSlice {
			slice = maxSleepSlice
		}

		timer := time.NewTimer(slice)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.abort.Store(true)
			l.stop.Store(true)
			return false
		case <-timer.C:
		}

		d -= slice
	}

	return !l.stopped(ctx)
}

func (l *Loop) stopped(ctx context.Context) bool {
	if l.stop.Load() {
		return true
	}

	select {
	case <-ctx.Done():
		l.abort.Store(true)
		l.stop.Store(true)
		return true
	default:
		return false
	}
}

func (l *Loop) closeSink() {
	if err := l.out.Close(); err != nil {
		logger.Debug().Err(err).Msg("log sink failed to close")
	}
}
