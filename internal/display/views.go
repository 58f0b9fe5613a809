package display

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/vamon/internal/config"
	"codeberg.org/mutker/vamon/internal/logger"
	"codeberg.org/mutker/vamon/internal/scale"
	"codeberg.org/mutker/vamon/internal/stats"
)

// trendDepth is the per-channel history window behind the plot views.
const trendDepth = 64

// Stack is the set of live views shown while a session runs: current values,
// session progress, and one trend plot per channel when plotting is enabled.
// All methods are safe for concurrent use; Render never returns an error to
// its caller.
type Stack struct {
	screen  Screen
	acq     config.Acquisition
	units   []string
	durFac  float64
	durUnit string

	mu      sync.Mutex
	view    int
	values  []float64
	elapsed time.Duration
	trend   *stats.Ring
}

// NewStack builds the live views for a session with the given settings and
// channel units.
func NewStack(screen Screen, acq config.Acquisition, units []string) *Stack {
	durFac, err := scale.DurationFactor(acq.Unit)
	if err != nil {
		durFac = 1
	}
	durUnit, err := scale.DurationUnit(acq.Unit)
	if err != nil {
		durUnit = "s"
	}

	return &Stack{
		screen:  screen,
		acq:     acq,
		units:   units,
		durFac:  durFac,
		durUnit: durUnit,
		trend:   stats.NewRing(len(units), trendDepth),
	}
}

func (s *Stack) Begin() {
	s.mu.Lock()
	s.view = 0
	s.values = nil
	s.elapsed = 0
	s.trend.Reset()
	s.mu.Unlock()

	if err := s.screen.Clear(); err != nil {
		logger.Debug().Err(err).Msg("screen clear failed")
	}
}

func (s *Stack) PushSample(values []float64, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = append(s.values[:0], values...)
	s.elapsed = elapsed
	s.trend.Add(values)
}

func (s *Stack) Progress(elapsed time.Duration) {
	s.mu.Lock()
	s.elapsed = elapsed
	s.mu.Unlock()
}

func (s *Stack) Toggle() {
	s.mu.Lock()
	s.view = (s.view + 1) % s.viewCount()
	s.mu.Unlock()
}

func (s *Stack) Render() {
	s.mu.Lock()
	var lines []string
	switch {
	case s.view == 0:
		lines = s.valuesLines()
	case s.view == 1:
		lines = s.progressLines()
	default:
		lines = s.plotLines(s.view - 2)
	}
	s.mu.Unlock()

	if err := s.screen.Show(lines); err != nil {
		logger.Debug().Err(err).Msg("frame dropped")
	}
}

func (s *Stack) viewCount() int {
	if s.acq.Plots {
		return 2 + len(s.units)
	}

	return 2
}

func (s *Stack) valuesLines() []string {
	lines := make([]string, 0, len(s.units)+2)
	for i, unit := range s.units {
		if i < len(s.values) {
			lines = append(lines, fmt.Sprintf("%8.2f %s", s.values[i], unit))
		} else {
			lines = append(lines, fmt.Sprintf("%8s %s", "--", unit))
		}
	}
	lines = append(lines, "", s.footer())

	return lines
}

func (s *Stack) progressLines() []string {
	width, _ := s.screen.Size()
	barWidth := width - 2
	if barWidth < 10 {
		barWidth = 10
	}

	elapsed := float64(s.elapsed) / float64(time.Second)
	lines := []string{"session", ""}

	if s.acq.Duration > 0 {
		total := float64(s.acq.Duration) * s.durFac
		frac := elapsed / total
		if frac > 1 {
			frac = 1
		}
		filled := int(frac * float64(barWidth))
		lines = append(lines,
			"["+strings.Repeat("#", filled)+strings.Repeat(".", barWidth-filled)+"]",
			fmt.Sprintf("%.1f%s / %d%s",
				elapsed/s.durFac, s.durUnit, s.acq.Duration, s.durUnit))
	} else {
		lines = append(lines, fmt.Sprintf("%.1f%s", elapsed/s.durFac, s.durUnit))
	}

	return lines
}

func (s *Stack) plotLines(channel int) []string {
	if channel < 0 || channel >= len(s.units) {
		return []string{"no such channel"}
	}

	width, _ := s.screen.Size()
	history := s.trend.Channel(channel)

	title := s.units[channel]
	if channel < len(s.values) {
		title = fmt.Sprintf("%s  %.2f", s.units[channel], s.values[channel])
	}

	return []string{
		title,
		sparkline(history, width),
		"",
		s.footer(),
	}
}

func (s *Stack) footer() string {
	return fmt.Sprintf("%d%s  %.1fs", s.acq.Interval, s.acq.Unit,
		float64(s.elapsed)/float64(time.Second))
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline maps a value history onto block runes, newest on the right.
func sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	span := hi - lo
	out := make([]rune, len(values))
	for i, v := range values {
		idx := len(sparkRunes) / 2
		if span > 0 {
			idx = int((v - lo) / span * float64(len(sparkRunes)-1))
		}
		out[i] = sparkRunes[idx]
	}

	return string(out)
}
