package session

import (
	"strings"
	"time"
)

// Stage identifies the screen a presentation shows. The set of stages is
// owned by the lesson catalog; the core only compares them.
type Stage string

const (
	// StageLocked is the initial stage before the teacher has done anything.
	StageLocked Stage = "locked"
	// StageWelcome is the first screen most lessons open with.
	StageWelcome Stage = "welcome-instructions"
)

// Phase is where a reader sits in the deduplicator state machine.
type Phase string

const (
	PhaseNoSession   Phase = "no_session"
	PhaseIdle        Phase = "idle"
	PhaseLocked      Phase = "locked"
	PhaseStageActive Phase = "stage_active"
)

// Record is the shared session document as the backing store holds it:
//
//	sessions/{sessionCode} = {currentStage, countdownTime, timestamp}
//
// CountdownTime is a pointer so an absent field survives decoding.
type Record struct {
	CurrentStage  string `json:"currentStage,omitempty"`
	CountdownTime *int   `json:"countdownTime,omitempty"`
	Timestamp     int64  `json:"timestamp,omitempty"`
}

// NewRecord builds a record carrying a stage and a countdown command.
func NewRecord(stage Stage, countdown int, at time.Time) Record {
	return Record{
		CurrentStage:  string(stage),
		CountdownTime: &countdown,
		Timestamp:     at.UnixMilli(),
	}
}

// IsEmpty reports whether the record carries neither a stage nor a
// countdown command. Stores never deliver empty records.
func (r Record) IsEmpty() bool {
	return strings.TrimSpace(r.CurrentStage) == "" && r.CountdownTime == nil
}

// Snapshot converts the wire record into the form the deduplicator reads.
func (r Record) Snapshot() Snapshot {
	s := Snapshot{
		Stage:     Stage(strings.TrimSpace(r.CurrentStage)),
		Countdown: Unset(),
	}
	if r.CountdownTime != nil {
		s.Countdown = CountdownOf(*r.CountdownTime)
	}
	if r.Timestamp > 0 {
		s.WrittenAt = time.UnixMilli(r.Timestamp)
	}
	return s
}

// Snapshot is one delivered state of the session record.
type Snapshot struct {
	Stage     Stage
	Countdown CountdownCommand
	WrittenAt time.Time // advisory only
}

// HasStage reports whether the snapshot names a stage.
func (s Snapshot) HasStage() bool {
	return s.Stage != ""
}

// CountdownCommand is either Unset or a countdown value in seconds. The zero
// value is Unset, which is distinct from a command of 0 ("stop").
type CountdownCommand struct {
	set     bool
	seconds int
}

// Unset returns the "no command yet" sentinel.
func Unset() CountdownCommand {
	return CountdownCommand{}
}

// CountdownOf wraps a command value. Negative values are clamped to 0.
func CountdownOf(seconds int) CountdownCommand {
	if seconds < 0 {
		seconds = 0
	}
	return CountdownCommand{set: true, seconds: seconds}
}

// IsSet reports whether the command carries a value.
func (c CountdownCommand) IsSet() bool {
	return c.set
}

// Seconds returns the command value and whether it is set.
func (c CountdownCommand) Seconds() (int, bool) {
	return c.seconds, c.set
}

func (c CountdownCommand) String() string {
	if !c.set {
		return "unset"
	}
	return (time.Duration(c.seconds) * time.Second).String()
}

// TimerState is the reader-local timer exposed to renderers.
type TimerState struct {
	RemainingSeconds int  `json:"remainingSeconds"`
	InitialSeconds   int  `json:"initialSeconds"`
	Running          bool `json:"isRunning"`
}

// View is everything a presentation renderer needs from a reader.
type View struct {
	SessionCode string     `json:"sessionCode"`
	Phase       Phase      `json:"phase"`
	Stage       Stage      `json:"currentStage"`
	Timer       TimerState `json:"timerDisplay"`
}
