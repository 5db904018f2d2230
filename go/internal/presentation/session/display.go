package session

import "fmt"

// Tier is the colour band a countdown display uses.
type Tier string

const (
	TierCalm    Tier = "calm"
	TierWarning Tier = "warning"
	TierUrgent  Tier = "urgent"
)

// Thresholds are the remaining-seconds cutoffs between tiers. They are fixed
// seconds and do not scale with the countdown length.
type Thresholds struct {
	CalmAbove    int
	WarningAbove int
}

// DefaultThresholds are calm above two minutes, warning above one.
func DefaultThresholds() Thresholds {
	return Thresholds{CalmAbove: 120, WarningAbove: 60}
}

// Tier returns the band for remaining seconds.
func (th Thresholds) Tier(remaining int) Tier {
	switch {
	case remaining > th.CalmAbove:
		return TierCalm
	case remaining > th.WarningAbove:
		return TierWarning
	default:
		return TierUrgent
	}
}

// FormatClock renders seconds as M:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Remaining renders the remaining time as M:SS.
func (s TimerState) Remaining() string {
	return FormatClock(s.RemainingSeconds)
}

// Elapsed renders the time counted so far as M:SS.
func (s TimerState) Elapsed() string {
	return FormatClock(s.ElapsedSeconds())
}

// ElapsedSeconds is initial minus remaining, never negative.
func (s TimerState) ElapsedSeconds() int {
	if s.InitialSeconds <= s.RemainingSeconds {
		return 0
	}
	return s.InitialSeconds - s.RemainingSeconds
}

// Progress is remaining/initial in [0,1]; 0 when no countdown was set.
func (s TimerState) Progress() float64 {
	if s.InitialSeconds <= 0 {
		return 0
	}
	p := float64(s.RemainingSeconds) / float64(s.InitialSeconds)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// Percent is Progress scaled to a whole percentage.
func (s TimerState) Percent() int {
	return int(s.Progress()*100 + 0.5)
}
