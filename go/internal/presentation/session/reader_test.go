package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// fakeSubscriber hands every callback back to the test so deliveries can be
// driven by hand.
type fakeSubscriber struct {
	mu           sync.Mutex
	callbacks    map[string]func(Record)
	subscribes   int
	unsubscribes int
	err          error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{callbacks: make(map[string]func(Record))}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, code string, onChange func(Record)) (Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.subscribes++
	f.callbacks[code] = onChange
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribes++
		delete(f.callbacks, code)
	}, nil
}

func (f *fakeSubscriber) emit(code string, rec Record) {
	f.mu.Lock()
	cb := f.callbacks[code]
	f.mu.Unlock()
	if cb != nil {
		cb(rec)
	}
}

func (f *fakeSubscriber) callback(code string) func(Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callbacks[code]
}

func (f *fakeSubscriber) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes, f.unsubscribes
}

type readerHarness struct {
	t      *testing.T
	clock  *clockwork.FakeClock
	sub    *fakeSubscriber
	views  chan View
	reader *Reader
}

func openHarness(t *testing.T, code string) *readerHarness {
	t.Helper()
	h := &readerHarness{
		t:     t,
		clock: clockwork.NewFakeClock(),
		sub:   newFakeSubscriber(),
		views: make(chan View, 1024),
	}
	r, err := Open(context.Background(), h.sub, code,
		WithClock(h.clock),
		WithObserver(func(v View) { h.views <- v }),
	)
	require.NoError(t, err)
	h.reader = r
	t.Cleanup(r.Close)
	return h
}

func (h *readerHarness) next() View {
	h.t.Helper()
	select {
	case v := <-h.views:
		return v
	case <-time.After(waitTimeout):
		h.t.Fatal("timed out waiting for a view")
		return View{}
	}
}

// waitFor discards views until one satisfies pred.
func (h *readerHarness) waitFor(pred func(View) bool) View {
	h.t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case v := <-h.views:
			if pred(v) {
				return v
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for view, last published: %+v", h.reader.View())
			return View{}
		}
	}
}

func (h *readerHarness) expectQuiet() {
	h.t.Helper()
	select {
	case v := <-h.views:
		h.t.Fatalf("unexpected view published: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

// tick advances one interval once the countdown ticker is registered and
// returns the resulting view.
func (h *readerHarness) tick() View {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(h.t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(TickInterval)
	return h.next()
}

func record(stage Stage, countdown ...int) Record {
	rec := Record{CurrentStage: string(stage)}
	if len(countdown) > 0 {
		rec.CountdownTime = &countdown[0]
	}
	return rec
}

func TestReaderStartsIdle(t *testing.T) {
	h := openHarness(t, "ABC123")

	v := h.next()
	assert.Equal(t, "ABC123", v.SessionCode)
	assert.Equal(t, PhaseIdle, v.Phase)
	assert.Equal(t, TimerState{}, v.Timer)
}

func TestReaderWithoutSessionCode(t *testing.T) {
	h := openHarness(t, "  ")

	v := h.next()
	assert.Equal(t, PhaseNoSession, v.Phase)
	subs, _ := h.sub.counts()
	assert.Zero(t, subs)
}

func TestReaderSubscribeError(t *testing.T) {
	sub := newFakeSubscriber()
	sub.err = errors.New("bucket unavailable")

	r, err := Open(context.Background(), sub, "ABC123", WithClock(clockwork.NewFakeClock()))
	require.Error(t, err)
	assert.Nil(t, r)
}

func TestReaderCountdownScenario(t *testing.T) {
	h := openHarness(t, "ABC123")
	h.next()

	h.sub.emit("ABC123", record(StageLocked))
	v := h.next()
	require.Equal(t, PhaseLocked, v.Phase)
	require.Equal(t, StageLocked, v.Stage)

	h.sub.emit("ABC123", record("daw-tutorial", 300))
	v = h.next()
	require.Equal(t, PhaseStageActive, v.Phase)
	require.Equal(t, Stage("daw-tutorial"), v.Stage)
	require.Equal(t, TimerState{RemainingSeconds: 300, InitialSeconds: 300, Running: true}, v.Timer)

	th := DefaultThresholds()
	for i := 1; i <= 120; i++ {
		v = h.tick()
		require.Equal(t, 300-i, v.Timer.RemainingSeconds)
	}
	assert.Equal(t, "3:00", v.Timer.Remaining())
	assert.Equal(t, "2:00", v.Timer.Elapsed())
	assert.Equal(t, TierCalm, th.Tier(v.Timer.RemainingSeconds))

	for v.Timer.RemainingSeconds > 50 {
		v = h.tick()
	}
	assert.Equal(t, TierUrgent, th.Tier(v.Timer.RemainingSeconds))
	assert.True(t, v.Timer.Running)
}

func TestReaderIgnoresDuplicateDelivery(t *testing.T) {
	h := openHarness(t, "ABC123")
	h.next()

	h.sub.emit("ABC123", record("daw-tutorial", 300))
	h.next()
	for i := 0; i < 100; i++ {
		h.tick()
	}
	require.Equal(t, 200, h.reader.View().Timer.RemainingSeconds)

	// A reconnect redelivers the same record; the countdown must not restart.
	h.sub.emit("ABC123", record("daw-tutorial", 300))
	v := h.tick()
	assert.Equal(t, 199, v.Timer.RemainingSeconds)
	assert.Equal(t, 300, v.Timer.InitialSeconds)
}

func TestReaderStopCommand(t *testing.T) {
	h := openHarness(t, "ABC123")
	h.next()

	h.sub.emit("ABC123", record("daw-tutorial", 300))
	h.next()
	h.tick()

	zero := 0
	h.sub.emit("ABC123", Record{CountdownTime: &zero})
	v := h.next()
	assert.Equal(t, Stage("daw-tutorial"), v.Stage)
	assert.Equal(t, TimerState{RemainingSeconds: 0, InitialSeconds: 300, Running: false}, v.Timer)

	h.clock.Advance(5 * TickInterval)
	h.expectQuiet()
}

func TestReaderStopWithNewStage(t *testing.T) {
	h := openHarness(t, "ABC123")
	h.next()

	h.sub.emit("ABC123", record("activity-a", 0))
	h.next()

	h.sub.emit("ABC123", record("activity-b", 60))
	h.next()

	// Same stop value as before, but on a new stage: the reset applies and
	// the stop is not swallowed.
	h.sub.emit("ABC123", record("activity-c", 0))
	v := h.next()
	assert.Equal(t, Stage("activity-c"), v.Stage)
	assert.Equal(t, TimerState{}, v.Timer)
	assert.Equal(t, CountdownOf(0), countdownOf(t, h))
}

func countdownOf(t *testing.T, h *readerHarness) CountdownCommand {
	t.Helper()
	// The deduplicator belongs to the loop; inspect it only once the loop has
	// gone quiet.
	h.expectQuiet()
	return h.reader.dedup.LastCountdown()
}

func TestReaderRestartKeepsSingleTicker(t *testing.T) {
	h := openHarness(t, "ABC123")
	h.next()

	h.sub.emit("ABC123", record("daw-tutorial", 300))
	h.next()
	h.tick()

	h.sub.emit("ABC123", record("daw-tutorial", 60))
	v := h.next()
	require.Equal(t, TimerState{RemainingSeconds: 60, InitialSeconds: 60, Running: true}, v.Timer)

	v = h.tick()
	assert.Equal(t, 59, v.Timer.RemainingSeconds)
	h.expectQuiet()
}

func TestReaderCountdownRunsOut(t *testing.T) {
	h := openHarness(t, "ABC123")
	h.next()

	h.sub.emit("ABC123", record("activity", 2))
	h.next()
	h.tick()
	v := h.tick()
	assert.Equal(t, TimerState{RemainingSeconds: 0, InitialSeconds: 2, Running: false}, v.Timer)

	h.clock.Advance(3 * TickInterval)
	h.expectQuiet()
	assert.Equal(t, 0, h.reader.View().Timer.RemainingSeconds)
}

func TestReaderSwitchSessionDropsStaleDeliveries(t *testing.T) {
	h := openHarness(t, "AAA111")
	h.next()

	h.sub.emit("AAA111", record("daw-tutorial", 300))
	h.next()
	stale := h.sub.callback("AAA111")
	require.NotNil(t, stale)

	require.NoError(t, h.reader.SetSessionCode(context.Background(), "BBB222"))
	v := h.next()
	assert.Equal(t, "BBB222", v.SessionCode)
	assert.Equal(t, PhaseIdle, v.Phase)
	assert.Equal(t, TimerState{}, v.Timer)

	stale(record("summary-1", 30))
	h.sub.emit("BBB222", record(StageWelcome))
	v = h.next()
	assert.Equal(t, StageWelcome, v.Stage)
	assert.Equal(t, TimerState{}, v.Timer)

	subs, unsubs := h.sub.counts()
	assert.Equal(t, 2, subs)
	assert.Equal(t, 1, unsubs)
}

func TestReaderSwitchToNoSession(t *testing.T) {
	h := openHarness(t, "AAA111")
	h.next()
	h.sub.emit("AAA111", record("daw-tutorial", 300))
	h.next()

	require.NoError(t, h.reader.SetSessionCode(context.Background(), ""))
	v := h.next()
	assert.Equal(t, PhaseNoSession, v.Phase)
	assert.Equal(t, TimerState{}, v.Timer)
}

func TestReaderCloseFreezesView(t *testing.T) {
	h := openHarness(t, "ABC123")
	h.next()

	h.sub.emit("ABC123", record("daw-tutorial", 300))
	h.next()
	h.tick()
	h.tick()

	h.reader.Close()
	frozen := h.reader.View()
	assert.Equal(t, 298, frozen.Timer.RemainingSeconds)

	select {
	case <-h.reader.Done():
	default:
		t.Fatal("reader loop still running after Close")
	}

	h.clock.Advance(10 * TickInterval)
	stale := record("summary-1")
	h.sub.emit("ABC123", stale)
	assert.Equal(t, frozen, h.reader.View())

	_, unsubs := h.sub.counts()
	assert.Equal(t, 1, unsubs)

	// Idempotent, and no further switching.
	h.reader.Close()
	assert.ErrorIs(t, h.reader.SetSessionCode(context.Background(), "OTHER"), ErrReaderClosed)
}

func TestReaderIgnoresEmptyRecord(t *testing.T) {
	h := openHarness(t, "ABC123")
	h.next()

	h.sub.emit("ABC123", Record{Timestamp: 1700000000000})
	h.expectQuiet()
	assert.Equal(t, PhaseIdle, h.reader.View().Phase)
}
