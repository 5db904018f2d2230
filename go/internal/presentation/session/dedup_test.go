package session

import (
	"math/rand"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(stage Stage, countdown ...int) Snapshot {
	s := Snapshot{Stage: stage, Countdown: Unset()}
	if len(countdown) > 0 {
		s.Countdown = CountdownOf(countdown[0])
	}
	return s
}

// applyTo runs a decision against a timer the same way the reader does.
func applyTo(t *Timer, d Decision) {
	if d.StageChanged {
		t.Reset()
	}
	switch d.Countdown {
	case CountdownStart:
		t.Start(d.Seconds)
	case CountdownStop:
		t.Stop()
	}
}

func TestDeduplicatorPhases(t *testing.T) {
	t.Parallel()
	d := NewDeduplicator()
	require.Equal(t, PhaseIdle, d.Phase())

	d.Apply(snap(StageLocked))
	require.Equal(t, PhaseLocked, d.Phase())

	d.Apply(snap("daw-tutorial", 300))
	require.Equal(t, PhaseStageActive, d.Phase())

	d.Apply(snap("summary-1"))
	require.Equal(t, PhaseStageActive, d.Phase())
	require.Equal(t, Stage("summary-1"), d.LastStage())
}

func TestDeduplicatorIgnoresRedelivery(t *testing.T) {
	t.Parallel()
	d := NewDeduplicator()

	first := d.Apply(snap("daw-tutorial", 300))
	require.True(t, first.StageChanged)
	require.Equal(t, CountdownStart, first.Countdown)
	require.Equal(t, 300, first.Seconds)

	again := d.Apply(snap("daw-tutorial", 300))
	assert.True(t, again.IsNoop())
}

func TestDeduplicatorMalformedSnapshotIsNoop(t *testing.T) {
	t.Parallel()
	d := NewDeduplicator()

	got := d.Apply(Snapshot{})
	assert.True(t, got.IsNoop())
	assert.Equal(t, PhaseIdle, d.Phase())
	assert.False(t, d.LastCountdown().IsSet())
}

func TestDeduplicatorStageChangeUnsetsCountdown(t *testing.T) {
	t.Parallel()
	d := NewDeduplicator()

	d.Apply(snap("activity-a", 0))
	seconds, set := d.LastCountdown().Seconds()
	require.True(t, set)
	require.Equal(t, 0, seconds)

	// A stop arriving with a new stage must still be processed.
	got := d.Apply(snap("activity-b", 0))
	require.True(t, got.StageChanged)
	assert.Equal(t, CountdownStop, got.Countdown)
}

func TestDeduplicatorSameCountdownOnNewStageRestarts(t *testing.T) {
	t.Parallel()
	d := NewDeduplicator()

	d.Apply(snap("activity-a", 300))
	got := d.Apply(snap("activity-b", 300))

	require.True(t, got.StageChanged)
	assert.Equal(t, CountdownStart, got.Countdown)
	assert.Equal(t, 300, got.Seconds)
}

func TestDeduplicatorCountdownOnlySnapshot(t *testing.T) {
	t.Parallel()
	d := NewDeduplicator()
	d.Apply(snap("daw-tutorial", 300))

	got := d.Apply(snap("", 0))
	assert.False(t, got.StageChanged)
	assert.Equal(t, CountdownStop, got.Countdown)
	assert.Equal(t, Stage("daw-tutorial"), d.LastStage())
}

func TestStageChangeResetsTimerBeforeCountdown(t *testing.T) {
	t.Parallel()
	timer := NewTimer(clockwork.NewFakeClock())
	d := NewDeduplicator()

	applyTo(timer, d.Apply(snap("activity-a", 300)))
	require.True(t, timer.State().Running)

	// New stage, no countdown: everything resets.
	applyTo(timer, d.Apply(snap("activity-b")))
	assert.Equal(t, TimerState{}, timer.State())
	assert.False(t, timer.Active())

	// New stage with a new countdown: reset, then start.
	applyTo(timer, d.Apply(snap("activity-c", 90)))
	assert.Equal(t, TimerState{RemainingSeconds: 90, InitialSeconds: 90, Running: true}, timer.State())
}

func TestDedupIdempotenceOverRandomSequences(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	stages := []Stage{StageLocked, "welcome-instructions", "daw-tutorial", "summary-1"}
	countdowns := []int{0, 30, 60, 300}

	for run := 0; run < 200; run++ {
		var unique, repeated []Snapshot
		for i := 0; i < 1+rng.Intn(10); i++ {
			var s Snapshot
			switch rng.Intn(3) {
			case 0:
				s = snap(stages[rng.Intn(len(stages))])
			case 1:
				s = snap("", countdowns[rng.Intn(len(countdowns))])
			default:
				s = snap(stages[rng.Intn(len(stages))], countdowns[rng.Intn(len(countdowns))])
			}
			unique = append(unique, s)
			for n := 1 + rng.Intn(4); n > 0; n-- {
				repeated = append(repeated, s)
			}
		}

		want := NewTimer(clockwork.NewFakeClock())
		wantDedup := NewDeduplicator()
		for _, s := range unique {
			applyTo(want, wantDedup.Apply(s))
		}

		got := NewTimer(clockwork.NewFakeClock())
		gotDedup := NewDeduplicator()
		for _, s := range repeated {
			applyTo(got, gotDedup.Apply(s))
		}

		require.Equal(t, want.State(), got.State(), "run %d", run)
		require.Equal(t, wantDedup.LastStage(), gotDedup.LastStage(), "run %d", run)
	}
}

func TestRecordSnapshot(t *testing.T) {
	t.Parallel()

	empty := Record{}
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.Snapshot().Countdown.IsSet())

	zero := 0
	stop := Record{CountdownTime: &zero}
	assert.False(t, stop.IsEmpty())
	seconds, set := stop.Snapshot().Countdown.Seconds()
	assert.True(t, set)
	assert.Equal(t, 0, seconds)

	staged := Record{CurrentStage: " daw-tutorial ", Timestamp: 1700000000000}
	s := staged.Snapshot()
	assert.Equal(t, Stage("daw-tutorial"), s.Stage)
	assert.Equal(t, int64(1700000000000), s.WrittenAt.UnixMilli())
}

func TestCountdownOfClampsNegative(t *testing.T) {
	t.Parallel()
	seconds, set := CountdownOf(-5).Seconds()
	assert.True(t, set)
	assert.Equal(t, 0, seconds)
	assert.Equal(t, "unset", Unset().String())
	assert.Equal(t, "5m0s", CountdownOf(300).String())
}
