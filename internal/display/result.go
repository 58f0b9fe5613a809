package display

import (
	"fmt"
	"time"

	"codeberg.org/mutker/vamon/internal/scale"
	"codeberg.org/mutker/vamon/internal/session"
)

// FormatResult renders a finished session for the ready screen. unit is the
// session's interval unit, which picks the scale the elapsed time is shown
// in. A degenerate session collapses to a single status line.
func FormatResult(res *session.Result, units []string, unit string) []string {
	if res == nil {
		return []string{"no session yet"}
	}

	if res.Degenerate {
		return []string{fmt.Sprintf("%s  no samples", res.State)}
	}

	durFac, err := scale.DurationFactor(unit)
	if err != nil {
		durFac = 1
	}
	durUnit, err := scale.DurationUnit(unit)
	if err != nil {
		durUnit = "s"
	}

	elapsed := float64(res.Elapsed) / float64(time.Second)
	head := fmt.Sprintf("%s  %d samples in %.1f%s",
		res.State, res.Samples, elapsed/durFac, durUnit)
	if elapsed > 0 {
		head += fmt.Sprintf(" (%.1f/s)", float64(res.Samples)/elapsed)
	}

	lines := []string{head, ""}
	for i, ch := range res.Channels {
		u := ""
		if i < len(units) {
			u = units[i]
		}
		lines = append(lines, fmt.Sprintf("%-4s min %.2f  mean %.2f  max %.2f",
			u, ch.Min, ch.Mean, ch.Max))
	}

	return lines
}
