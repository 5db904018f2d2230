package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const inboxBufferSize = 64

// Observer receives every view a reader publishes. Observers run on the
// reader's event loop and must not block.
type Observer func(View)

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithClock sets the clock driving the countdown. Tests pass a FakeClock.
func WithClock(clock clockwork.Clock) ReaderOption {
	return func(r *Reader) {
		r.clock = clock
	}
}

// WithObserver registers an observer for published views.
func WithObserver(o Observer) ReaderOption {
	return func(r *Reader) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// Reader is one presentation instance following a session record. Remote
// deliveries and countdown ticks are both handled on a single event loop, so
// the deduplicator and the timer are only ever touched by one goroutine.
type Reader struct {
	id        string
	sub       Subscriber
	clock     clockwork.Clock
	observers []Observer

	inbox     chan message
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	subMu       sync.Mutex
	gen         uint64
	unsubscribe Unsubscribe
	closed      bool

	viewMu sync.RWMutex
	view   View

	// owned by the event loop
	loopGen uint64
	code    string
	dedup   *Deduplicator
	timer   *Timer
}

type message struct {
	gen      uint64
	switchTo *string
	record   Record
}

// NewReader starts a reader with no session. Call SetSessionCode to follow a
// session, or use Open.
func NewReader(sub Subscriber, opts ...ReaderOption) *Reader {
	r := &Reader{
		id:     uuid.New().String()[:8],
		sub:    sub,
		inbox:  make(chan message, inboxBufferSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		dedup:  NewDeduplicator(),
		view:   View{Phase: PhaseNoSession},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	r.timer = NewTimer(r.clock)

	go r.run()
	return r
}

// Open starts a reader following code. An empty code yields a reader in the
// no-session state with no subscription.
func Open(ctx context.Context, sub Subscriber, code string, opts ...ReaderOption) (*Reader, error) {
	r := NewReader(sub, opts...)
	if err := r.SetSessionCode(ctx, code); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// ID returns a short identifier for logs.
func (r *Reader) ID() string {
	return r.id
}

// View returns the latest published view.
func (r *Reader) View() View {
	r.viewMu.RLock()
	defer r.viewMu.RUnlock()
	return r.view
}

// Done is closed once the reader has been torn down.
func (r *Reader) Done() <-chan struct{} {
	return r.exited
}

// SetSessionCode releases the current subscription, resets all local state
// and follows code instead. Deliveries from the released subscription that
// are still queued are discarded.
func (r *Reader) SetSessionCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)

	r.subMu.Lock()
	defer r.subMu.Unlock()

	if r.closed {
		return ErrReaderClosed
	}
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}

	r.gen++
	gen := r.gen
	if err := r.send(message{gen: gen, switchTo: &code}); err != nil {
		return err
	}

	if code == "" {
		log.Info().Str("reader_id", r.id).Msg("no session code, reader idle")
		return nil
	}

	unsub, err := r.sub.Subscribe(ctx, code, func(rec Record) {
		// A closed reader drops late deliveries.
		_ = r.send(message{gen: gen, record: rec})
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("reader_id", r.id).
			Str("session_code", code).
			Msg("failed to subscribe to session")
		return fmt.Errorf("subscribe to session %s: %w", code, err)
	}
	r.unsubscribe = unsub

	log.Info().
		Str("reader_id", r.id).
		Str("session_code", code).
		Msg("reader subscribed")
	return nil
}

// Close unsubscribes and cancels the countdown. The view is frozen at its
// last value; Close is idempotent.
func (r *Reader) Close() {
	r.closeOnce.Do(func() {
		r.subMu.Lock()
		r.closed = true
		close(r.done)
		if r.unsubscribe != nil {
			r.unsubscribe()
			r.unsubscribe = nil
		}
		r.subMu.Unlock()

		<-r.exited
		log.Debug().Str("reader_id", r.id).Msg("reader closed")
	})
}

func (r *Reader) send(m message) error {
	select {
	case <-r.done:
		return ErrReaderClosed
	default:
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrReaderClosed
	}
}

func (r *Reader) run() {
	defer close(r.exited)
	defer r.timer.Halt()

	for {
		select {
		case <-r.done:
			return
		case m := <-r.inbox:
			r.handle(m)
		case <-r.timer.C():
			if r.timer.Tick() {
				r.publish()
			}
		}
	}
}

func (r *Reader) handle(m message) {
	if m.switchTo != nil {
		r.loopGen = m.gen
		r.code = *m.switchTo
		r.dedup = NewDeduplicator()
		r.timer.Reset()
		r.publish()
		return
	}

	if m.gen != r.loopGen {
		log.Debug().Str("reader_id", r.id).Msg("dropping delivery from released subscription")
		return
	}
	if m.record.IsEmpty() {
		return
	}

	d := r.dedup.Apply(m.record.Snapshot())
	if d.IsNoop() {
		log.Debug().
			Str("reader_id", r.id).
			Str("session_code", r.code).
			Msg("duplicate session record ignored")
		return
	}

	if d.StageChanged {
		r.timer.Reset()
		log.Debug().
			Str("reader_id", r.id).
			Str("stage", string(d.Stage)).
			Msg("stage changed")
	}
	switch d.Countdown {
	case CountdownStart:
		r.timer.Start(d.Seconds)
	case CountdownStop:
		r.timer.Stop()
	}
	r.publish()
}

func (r *Reader) publish() {
	v := View{
		SessionCode: r.code,
		Phase:       r.dedup.Phase(),
		Stage:       r.dedup.LastStage(),
		Timer:       r.timer.State(),
	}
	if r.code == "" {
		v.Phase = PhaseNoSession
	}

	r.viewMu.Lock()
	r.view = v
	r.viewMu.Unlock()

	for _, o := range r.observers {
		o(v)
	}
}
