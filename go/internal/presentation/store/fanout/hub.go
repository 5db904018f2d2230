package fanout

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// DefaultBufferSize is the number of records queued per subscription before
// the oldest queued ones are dropped.
const DefaultBufferSize = 64

// Hub fans session records out to per-code subscribers. Each subscription
// gets its own goroutine, so a slow callback only delays itself.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]map[string]*subscription
	bufferSize int
}

type subscription struct {
	id       string
	updates  chan session.Record
	quit     chan struct{}
	finished chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs:       make(map[string]map[string]*subscription),
		bufferSize: DefaultBufferSize,
	}
}

// Subscribe registers onChange for code. Records in initial are queued ahead
// of anything published later. Empty records are never delivered.
func (h *Hub) Subscribe(code string, onChange func(session.Record), initial ...session.Record) session.Unsubscribe {
	sub := &subscription{
		id:       uuid.New().String(),
		updates:  make(chan session.Record, h.bufferSize),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[code] == nil {
		h.subs[code] = make(map[string]*subscription)
	}
	h.subs[code][sub.id] = sub
	for _, rec := range initial {
		sub.offer(code, rec)
	}
	h.mu.Unlock()

	go sub.dispatch(onChange)

	log.Debug().
		Str("session_code", code).
		Str("subscription_id", sub.id).
		Msg("subscription added")

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[code], sub.id)
			if len(h.subs[code]) == 0 {
				delete(h.subs, code)
			}
			h.mu.Unlock()

			close(sub.quit)
			<-sub.finished

			log.Debug().
				Str("session_code", code).
				Str("subscription_id", sub.id).
				Msg("subscription released")
		})
	}
}

// Publish queues rec for every subscriber of code.
func (h *Hub) Publish(code string, rec session.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs[code] {
		sub.offer(code, rec)
	}
}

// Count returns the number of live subscriptions for code.
func (h *Hub) Count(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[code])
}

// Codes lists the session codes with at least one subscriber.
func (h *Hub) Codes() []string {
	h.mu.RLock()
	codes := make([]string, 0, len(h.subs))
	for code := range h.subs {
		codes = append(codes, code)
	}
	h.mu.RUnlock()

	sort.Strings(codes)
	return codes
}

// offer queues rec, evicting the oldest queued record when the buffer is
// full. The newest record always stays queued.
func (sub *subscription) offer(code string, rec session.Record) {
	if rec.IsEmpty() {
		return
	}
	for {
		select {
		case sub.updates <- rec:
			return
		default:
		}
		select {
		case <-sub.updates:
			log.Warn().
				Str("session_code", code).
				Str("subscription_id", sub.id).
				Msg("subscriber buffer full, dropping oldest record")
		default:
		}
	}
}

func (sub *subscription) dispatch(onChange func(session.Record)) {
	defer close(sub.finished)
	for {
		select {
		case <-sub.quit:
			return
		case rec := <-sub.updates:
			// Prefer quitting over a late delivery.
			select {
			case <-sub.quit:
				return
			default:
			}
			onChange(rec)
		}
	}
}
