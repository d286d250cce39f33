// Package timematch scores how close a post's time of day falls to a user's
// active-hours windows.
//
// Times are treated as minutes on a 1440-minute ring so that windows and
// distances wrap around midnight.
package timematch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Ring and scoring constants.
const (
	MinutesPerDay = 24 * 60

	// DefaultDecayMinutes is the distance at which a post outside every
	// window stops earning any time-match credit.
	DefaultDecayMinutes = 600

	maxHour   = 23
	maxMinute = 59
)

// Window is an active-hours range in minutes since midnight. Start > End
// means the window wraps past midnight.
type Window struct {
	Start int
	End   int
}

// Contains reports whether minute m falls inside the window, bounds included.
func (w Window) Contains(m int) bool {
	if w.Start <= w.End {
		return w.Start <= m && m <= w.End
	}
	return m >= w.Start || m <= w.End
}

// String renders the window back into its "HH:MM-HH:MM" form.
func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// ParseWindow parses a "HH:MM-HH:MM" active-hours string.
func ParseWindow(s string) (Window, error) {
	startStr, endStr, ok := strings.Cut(s, "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q: missing '-'", ErrInvalidWindow, s)
	}
	start, err := parseClock(startStr)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
	}
	end, err := parseClock(endStr)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
	}
	return Window{Start: start, End: end}, nil
}

// ParseWindows parses every well-formed window in ss and silently drops the
// rest.
func ParseWindows(ss []string) []Window {
	out := make([]Window, 0, len(ss))
	for _, s := range ss {
		w, err := ParseWindow(s)
		if err != nil {
			continue
		}
		out = append(out, w)
	}
	return out
}

// parseClock reads "HH:MM" as minutes since midnight. "24:00" reads as
// MinutesPerDay, the end of the day, which sits on the ring where midnight does.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q is not HH:MM", s)
	}
	if hh == "24" && mm == "00" {
		return MinutesPerDay, nil
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > maxHour {
		return 0, fmt.Errorf("hour %q out of range", hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > maxMinute {
		return 0, fmt.Errorf("minute %q out of range", mm)
	}
	return h*60 + m, nil
}

// ParseTimestamp parses an ISO-8601 timestamp and normalises it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t.UTC(), nil
}

// MinuteOfDay returns t's position on the ring.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ringDistance is the shorter way around the clock between two minutes.
func ringDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if alt := MinutesPerDay - d; alt < d {
		return alt
	}
	return d
}

// Calculator turns a time of day and a set of windows into a score in [0, 1].
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	decayMinutes float64
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithDecayMinutes sets the distance at which the score reaches zero.
func WithDecayMinutes(minutes float64) Option {
	return func(c *Calculator) {
		if minutes > 0 {
			c.decayMinutes = minutes
		}
	}
}

// New creates a Calculator with the default 600-minute decay.
func New(opts ...Option) *Calculator {
	c := &Calculator{decayMinutes: DefaultDecayMinutes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DecayMinutes returns the configured decay distance.
func (c *Calculator) DecayMinutes() float64 { return c.decayMinutes }

// Score parses activeHours and scores t against them.
func (c *Calculator) Score(t time.Time, activeHours []string) float64 {
	return c.ScoreWindows(MinuteOfDay(t), ParseWindows(activeHours))
}

// ScoreWindows returns 1.0 when minute lies in any window. Otherwise the
// score decays linearly with the distance to the nearest window boundary and
// is rounded to two decimals. No windows yields 0.
func (c *Calculator) ScoreWindows(minute int, windows []Window) float64 {
	if len(windows) == 0 {
		return 0
	}
	nearest := MinutesPerDay
	for _, w := range windows {
		if w.Contains(minute) {
			return 1.0
		}
		nearest = min(nearest, ringDistance(minute, w.Start), ringDistance(minute, w.End))
	}
	score := math.Max(0, 1-float64(nearest)/c.decayMinutes)
	return math.Round(score*100) / 100
}
