package session

// CountdownAction is what the deduplicator asks the timer engine to do.
type CountdownAction int

const (
	CountdownNone CountdownAction = iota
	CountdownStart
	CountdownStop
)

func (a CountdownAction) String() string {
	switch a {
	case CountdownStart:
		return "start"
	case CountdownStop:
		return "stop"
	default:
		return "none"
	}
}

// Decision is the outcome of applying one snapshot. The stage reset, when
// present, must be carried out before the countdown action.
type Decision struct {
	StageChanged bool
	Stage        Stage
	Countdown    CountdownAction
	Seconds      int
}

// IsNoop reports whether the snapshot changed nothing.
func (d Decision) IsNoop() bool {
	return !d.StageChanged && d.Countdown == CountdownNone
}

// Deduplicator remembers the last stage and countdown command a reader acted
// on so redundant deliveries of unchanged fields are absorbed. It holds
// per-reader state and is not safe for concurrent use; the reader's event
// loop owns it.
type Deduplicator struct {
	phase         Phase
	lastStage     Stage
	lastCountdown CountdownCommand
}

// NewDeduplicator returns a deduplicator in the Idle phase.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{phase: PhaseIdle}
}

// Phase returns the current state machine phase.
func (d *Deduplicator) Phase() Phase {
	return d.phase
}

// LastStage returns the stage last applied, or "" if none.
func (d *Deduplicator) LastStage() Stage {
	return d.lastStage
}

// LastCountdown returns the countdown command last applied.
func (d *Deduplicator) LastCountdown() CountdownCommand {
	return d.lastCountdown
}

// Apply decides whether s carries new commands. Snapshots with neither field
// are no-ops.
func (d *Deduplicator) Apply(s Snapshot) Decision {
	var out Decision

	if s.HasStage() && s.Stage != d.lastStage {
		d.lastStage = s.Stage
		// Unset rather than 0 so a stop command arriving with the new stage
		// is still seen as new.
		d.lastCountdown = Unset()
		out.StageChanged = true
		out.Stage = s.Stage
		if s.Stage == StageLocked {
			d.phase = PhaseLocked
		} else {
			d.phase = PhaseStageActive
		}
	}

	if s.Countdown.IsSet() && s.Countdown != d.lastCountdown {
		d.lastCountdown = s.Countdown
		seconds, _ := s.Countdown.Seconds()
		if seconds > 0 {
			out.Countdown = CountdownStart
			out.Seconds = seconds
		} else {
			out.Countdown = CountdownStop
		}
	}

	return out
}
