package app

import (
	"context"
	"fmt"
	"strconv"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/input"
	"codeberg.org/mutker/vamon/internal/logger"
	"codeberg.org/mutker/vamon/internal/scale"
)

// keySource is what the editor and ready screens need from the key reader.
type keySource interface {
	Poll(km input.Keymap) (string, bool)
	Wait(ctx context.Context, km input.Keymap) (string, error)
	Drain()
}

// maxDigits caps a field's entry buffer; enough for any sane setting.
const maxDigits = 6

type editField struct {
	label string
	show  func(acq config.Acquisition) string
	apply func(acq *config.Acquisition, buf string)
}

func editFields() []editField {
	return []editField{
		{
			label: "interval",
			show:  func(a config.Acquisition) string { return strconv.Itoa(a.Interval) },
			apply: func(a *config.Acquisition, buf string) {
				if n, err := strconv.Atoi(buf); err == nil {
					a.Interval = n
				}
			},
		},
		{
			label: "unit " + unitHint(),
			show:  func(a config.Acquisition) string { return a.Unit },
			apply: func(a *config.Acquisition, buf string) {
				if buf == "" {
					return
				}
				// the last digit pressed picks from the unit ladder
				d := int(buf[len(buf)-1] - '0')
				a.Unit = scale.UnitAt(d)
			},
		},
		{
			label: "duration (0 = unbounded)",
			show:  func(a config.Acquisition) string { return strconv.Itoa(a.Duration) },
			apply: func(a *config.Acquisition, buf string) {
				if n, err := strconv.Atoi(buf); err == nil {
					a.Duration = n
				}
			},
		},
		{
			label: "oversample",
			show:  func(a config.Acquisition) string { return strconv.Itoa(a.Oversample) },
			apply: func(a *config.Acquisition, buf string) {
				if n, err := strconv.Atoi(buf); err == nil {
					a.Oversample = n
				}
			},
		},
		{
			label: "update (ms)",
			show:  func(a config.Acquisition) string { return strconv.Itoa(a.Update) },
			apply: func(a *config.Acquisition, buf string) {
				if n, err := strconv.Atoi(buf); err == nil {
					a.Update = n
				}
			},
		},
		{
			label: "plots (0/1)",
			show: func(a config.Acquisition) string {
				if a.Plots {
					return "1"
				}
				return "0"
			},
			apply: func(a *config.Acquisition, buf string) {
				if buf != "" {
					a.Plots = buf != "0"
				}
			},
		},
	}
}

func unitHint() string {
	hint := "("
	for i, u := range scale.Units() {
		if i > 0 {
			hint += " "
		}
		hint += fmt.Sprintf("%d=%s", i, u)
	}

	return hint + ")"
}

// editAcquisition walks the user through the settings fields. Digits build a
// field's value, backspace clears it, enter commits it and advances; an
// empty commit keeps the field as is. Cancelling or failing validation
// leaves the settings untouched.
func editAcquisition(ctx context.Context, keys keySource, show func([]string), acq config.Acquisition) (config.Acquisition, bool) {
	cand := acq
	keys.Drain()

	for _, f := range editFields() {
		buf := ""

	entry:
		for {
			value := f.show(cand)
			if buf != "" {
				value = buf + "_"
			}
			show([]string{
				"settings",
				"",
				fmt.Sprintf("%s: %s", f.label, value),
				"",
				"[0-9] edit  [bksp] clear  [enter] next  [q] cancel",
			})

			action, err := keys.Wait(ctx, input.EditKeymap())
			if err != nil {
				return acq, false
			}

			switch action {
			case input.ActionExit:
				return acq, false
			case input.ActionClear:
				buf = ""
			case input.ActionNext:
				f.apply(&cand, buf)
				break entry
			default:
				if len(buf) < maxDigits {
					buf += action
				}
			}
		}
	}

	if err := cand.Validate(); err != nil {
		logger.Warn().Err(err).Msg("rejecting edited settings")
		return acq, false
	}

	return cand, true
}

func (a *App) edit(ctx context.Context) {
	acq, ok := editAcquisition(ctx, a.keys, a.show, a.cfg.Acquisition)
	if ok {
		a.cfg.Acquisition = acq
	}
}
