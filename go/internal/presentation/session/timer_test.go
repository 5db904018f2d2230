package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerStartAndTick(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)

	require.Nil(t, timer.C())
	timer.Start(3)
	require.NotNil(t, timer.C())
	assert.Equal(t, TimerState{RemainingSeconds: 3, InitialSeconds: 3, Running: true}, timer.State())

	clock.Advance(TickInterval)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("expected a tick after advancing one interval")
	}
	require.True(t, timer.Tick())
	assert.Equal(t, 2, timer.State().RemainingSeconds)
}

func TestTimerStopsAtZero(t *testing.T) {
	t.Parallel()
	timer := NewTimer(clockwork.NewFakeClock())
	timer.Start(2)

	require.True(t, timer.Tick())
	require.True(t, timer.Tick())
	assert.Equal(t, TimerState{RemainingSeconds: 0, InitialSeconds: 2, Running: false}, timer.State())
	assert.False(t, timer.Active())

	// Never goes negative.
	assert.False(t, timer.Tick())
	assert.Equal(t, 0, timer.State().RemainingSeconds)
}

func TestTimerStartNonPositiveStops(t *testing.T) {
	t.Parallel()
	timer := NewTimer(clockwork.NewFakeClock())
	timer.Start(30)
	timer.Tick()

	timer.Start(0)
	assert.Equal(t, TimerState{RemainingSeconds: 0, InitialSeconds: 30, Running: false}, timer.State())
	assert.False(t, timer.Active())

	timer.Start(-4)
	assert.False(t, timer.State().Running)
}

func TestTimerRestartReplacesTicker(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)

	timer.Start(300)
	first := timer.C()
	clock.Advance(TickInterval)

	timer.Start(60)
	second := timer.C()
	require.NotEqual(t, first, second)

	// The pending tick from the first ticker was drained on restart.
	select {
	case <-first:
		t.Fatal("stale tick left on replaced ticker")
	default:
	}
	assert.Equal(t, TimerState{RemainingSeconds: 60, InitialSeconds: 60, Running: true}, timer.State())
}

func TestTimerResetAndHalt(t *testing.T) {
	t.Parallel()
	timer := NewTimer(clockwork.NewFakeClock())

	timer.Start(10)
	timer.Tick()
	timer.Halt()
	assert.False(t, timer.Active())
	assert.Equal(t, TimerState{RemainingSeconds: 9, InitialSeconds: 10, Running: true}, timer.State())

	timer.Reset()
	assert.Equal(t, TimerState{}, timer.State())
}
