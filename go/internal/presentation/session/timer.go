package session

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TickInterval is the countdown granularity.
const TickInterval = time.Second

// Timer is the reader-local countdown engine. It owns at most one ticker at a
// time: Start replaces any running ticker before creating a new one, so two
// tickers can never decrement the same countdown.
//
// Timer is not safe for concurrent use. The owning event loop selects on C()
// and calls Tick for every value received.
type Timer struct {
	clock  clockwork.Clock
	ticker clockwork.Ticker
	state  TimerState
}

// NewTimer creates a stopped timer driven by clock.
func NewTimer(clock clockwork.Clock) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{clock: clock}
}

// Start (re)starts a countdown from seconds. Non-positive values stop the
// timer instead.
func (t *Timer) Start(seconds int) {
	if seconds <= 0 {
		t.Stop()
		return
	}
	t.replaceTicker(t.clock.NewTicker(TickInterval))
	t.state = TimerState{
		RemainingSeconds: seconds,
		InitialSeconds:   seconds,
		Running:          true,
	}
	log.Debug().Int("seconds", seconds).Msg("countdown started")
}

// Stop zeroes the remaining time and stops ticking. The initial value is kept
// for progress displays.
func (t *Timer) Stop() {
	t.cancelTicker()
	t.state.RemainingSeconds = 0
	t.state.Running = false
}

// Reset returns the timer to its zero state.
func (t *Timer) Reset() {
	t.cancelTicker()
	t.state = TimerState{}
}

// Halt cancels the ticker and leaves the state where it is. Used on teardown.
func (t *Timer) Halt() {
	t.cancelTicker()
}

// C returns the tick channel, or nil when no ticker is active. Receiving from
// a nil channel blocks forever, which is what an idle select branch wants.
func (t *Timer) C() <-chan time.Time {
	if t.ticker == nil {
		return nil
	}
	return t.ticker.Chan()
}

// Tick decrements the countdown by one second and stops it at zero. It
// reports whether the state changed.
func (t *Timer) Tick() bool {
	if !t.state.Running || t.state.RemainingSeconds <= 0 {
		return false
	}
	t.state.RemainingSeconds--
	if t.state.RemainingSeconds == 0 {
		t.cancelTicker()
		t.state.Running = false
		log.Debug().Msg("countdown finished")
	}
	return true
}

// State returns a copy of the current timer state.
func (t *Timer) State() TimerState {
	return t.state
}

// Active reports whether a ticker is outstanding.
func (t *Timer) Active() bool {
	return t.ticker != nil
}

func (t *Timer) replaceTicker(next clockwork.Ticker) {
	if t.ticker != nil {
		stopAndDrainTicker(t.ticker)
		log.Debug().Msg("replaced running countdown")
	}
	t.ticker = next
}

func (t *Timer) cancelTicker() {
	if t.ticker == nil {
		return
	}
	stopAndDrainTicker(t.ticker)
	t.ticker = nil
}

// stopAndDrainTicker stops a ticker and discards a pending tick so a stale
// value is never read after a restart.
func stopAndDrainTicker(ticker clockwork.Ticker) {
	ticker.Stop()
	select {
	case <-ticker.Chan():
	default:
	}
}
