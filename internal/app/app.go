// Package app is the instrument's outer state machine: ready between
// sessions, running during one, or editing settings. With no terminal
// attached it degrades to a single headless session on the console sink.
package app

import (
	"context"
	"fmt"

	"codeberg.org/mutker/vamon/internal/archive"
	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/display"
	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/input"
	"codeberg.org/mutker/vamon/internal/logger"
	"codeberg.org/mutker/vamon/internal/session"
	"codeberg.org/mutker/vamon/internal/sink"
	"codeberg.org/mutker/vamon/internal/source"
)

const ErrSessionFailed = errors.ErrorCode("app_session_failed")

// App owns the measurement source and the last published result.
type App struct {
	cfg    *config.Config
	src    source.Source
	screen display.Screen
	keys   *input.Reader
	last   *session.Result
}

func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &App{
		cfg: cfg,
		src: newSource(cfg.Source),
	}, nil
}

func newSource(cfg config.Source) source.Source {
	if cfg.Driver == "serial" {
		return source.NewSerial(cfg.Serial)
	}

	return source.NewSynth(cfg.Synth)
}

// Run drives the instrument until the user exits or, headless, until one
// session finishes.
func (a *App) Run(ctx context.Context) error {
	defer a.src.Close()

	keys, err := input.NewReader()
	if err != nil {
		if !errors.HasCode(err, input.ErrNoTTY) {
			return err
		}
		logger.Info().Msg("no terminal attached, running one session")

		return a.runHeadless(ctx)
	}

	a.keys = keys
	defer func() {
		if err := a.keys.Close(); err != nil {
			logger.Debug().Err(err).Msg("terminal restore failed")
		}
	}()
	a.screen = display.NewTerminal()

	for {
		action, err := a.ready(ctx)
		if err != nil {
			return err
		}

		switch action {
		case input.ActionStart:
			a.runSession(ctx)
		case input.ActionConfig:
			a.edit(ctx)
		case input.ActionExit:
			_ = a.screen.Clear()
			return nil
		}

		if ctx.Err() != nil {
			_ = a.screen.Clear()
			return nil
		}
	}
}

// ready shows the last result and the current settings until the user picks
// the next state. Toggle flips between the two pages.
func (a *App) ready(ctx context.Context) (string, error) {
	a.keys.Drain()

	page := 0
	for {
		if page == 0 {
			a.showResult()
		} else {
			a.showSettings()
		}

		action, err := a.keys.Wait(ctx, input.ReadyKeymap())
		if err != nil {
			if ctx.Err() != nil {
				return input.ActionExit, nil
			}
			return "", err
		}

		if action == input.ActionToggle {
			page = 1 - page
			continue
		}

		return action, nil
	}
}

func (a *App) showResult() {
	lines := display.FormatResult(a.last, a.src.Units(), a.cfg.Acquisition.Unit)
	lines = append(lines, "", "[space] start  [c] settings  [tab] page  [q] quit")
	a.show(lines)
}

func (a *App) showSettings() {
	acq := a.cfg.Acquisition
	duration := "unbounded"
	if acq.Duration > 0 {
		duration = fmt.Sprintf("%d", acq.Duration)
	}

	a.show([]string{
		"settings",
		"",
		fmt.Sprintf("interval    %d%s", acq.Interval, acq.Unit),
		fmt.Sprintf("duration    %s", duration),
		fmt.Sprintf("oversample  %dX", acq.Oversample),
		fmt.Sprintf("update      %dms", acq.Update),
		fmt.Sprintf("plots       %t", acq.Plots),
		"",
		"[space] start  [c] settings  [tab] page  [q] quit",
	})
}

func (a *App) show(lines []string) {
	if err := a.screen.Show(lines); err != nil {
		logger.Debug().Err(err).Msg("frame dropped")
	}
}

// runSession runs one interactive session. A failed session keeps the
// previous result on the ready screen.
func (a *App) runSession(ctx context.Context) {
	out, err := a.buildSink(true)
	if err != nil {
		logger.ErrorWithCode(errors.Wrap(ErrSessionFailed, err)).Msg("could not open sinks")
		return
	}

	a.keys.Drain()
	loop, err := session.New(session.Options{
		Settings: a.cfg.Acquisition,
		Source:   a.src,
		Sink:     out,
		Views:    display.NewStack(a.screen, a.cfg.Acquisition, a.src.Units()),
		Keys:     activeKeys{a.keys},
	})
	if err != nil {
		logger.ErrorWithCode(errors.Wrap(ErrSessionFailed, err)).Msg("session rejected settings")
		return
	}

	res, err := loop.Run(ctx)
	if err != nil {
		logger.ErrorWithCode(errors.Wrap(ErrSessionFailed, err)).Msg("session failed")
		return
	}

	a.last = res
}

// runHeadless runs exactly one session with the console sink enabled, the
// way the instrument behaves when launched from a pipeline or a service.
func (a *App) runHeadless(ctx context.Context) error {
	out, err := a.buildSink(false)
	if err != nil {
		return err
	}

	loop, err := session.New(session.Options{
		Settings: a.cfg.Acquisition,
		Source:   a.src,
		Sink:     out,
	})
	if err != nil {
		return err
	}

	res, err := loop.Run(ctx)
	if err != nil {
		return errors.Wrap(ErrSessionFailed, err)
	}
	a.last = res

	logger.Info().
		Str("state", res.State.String()).
		Int("samples", res.Samples).
		Dur("elapsed", res.Elapsed).
		Msg("session finished")

	return nil
}

// buildSink assembles the measurement sinks for one session. Interactive
// sessions drop the console sink: the terminal display owns stdout.
func (a *App) buildSink(interactive bool) (sink.Sink, error) {
	units, format := a.src.Units(), a.src.Format()

	var sinks []sink.Sink
	if a.cfg.Sink.Console && !interactive {
		sinks = append(sinks, sink.NewWriter(sink.NewConsole(), units, format))
	}
	if a.cfg.Sink.UDP != "" {
		sinks = append(sinks, sink.NewWriter(sink.NewUDP(a.cfg.Sink.UDP), units, format))
	}
	if a.cfg.Archive.Enabled {
		rec, err := archive.NewRecorder(archive.Config{DBPath: a.cfg.Archive.DBPath}, units)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, rec)
	}

	return sink.NewTee(sinks...), nil
}

// activeKeys adapts the raw reader to the session's key contract.
type activeKeys struct {
	r *input.Reader
}

func (k activeKeys) Poll() (string, bool) {
	return k.r.Poll(input.ActiveKeymap())
}
