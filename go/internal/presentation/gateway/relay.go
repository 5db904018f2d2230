package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// Broadcaster receives events for fan-out to screens
type Broadcaster interface {
	BroadcastToSession(code string, event *SessionEvent)
}

// Relay holds one store subscription per session that has at least one
// connected screen, and turns every delivered record into a SessionUpdated
// broadcast. The subscription is released with the last screen
type Relay struct {
	sub session.Subscriber

	bmu         sync.RWMutex
	broadcaster Broadcaster

	mu       sync.Mutex
	sessions map[string]*relayedSession
}

type relayedSession struct {
	refs  int
	unsub session.Unsubscribe
}

// NewRelay creates a relay reading from sub. SetBroadcaster must be called
// before the first Join
func NewRelay(sub session.Subscriber) *Relay {
	return &Relay{
		sub:      sub,
		sessions: make(map[string]*relayedSession),
	}
}

// SetBroadcaster sets where relayed records go
func (r *Relay) SetBroadcaster(b Broadcaster) {
	r.bmu.Lock()
	r.broadcaster = b
	r.bmu.Unlock()
}

// Join adds a reference to code, subscribing on the first one. A failed
// subscribe still counts the reference so Leave stays balanced
func (r *Relay) Join(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs, ok := r.sessions[code]
	if !ok {
		rs = &relayedSession{}
		r.sessions[code] = rs
	}
	rs.refs++
	if rs.unsub != nil {
		return nil
	}

	unsub, err := r.sub.Subscribe(ctx, code, func(rec session.Record) {
		r.forward(code, rec)
	})
	if err != nil {
		return fmt.Errorf("subscribe to session %s: %w", code, err)
	}
	rs.unsub = unsub

	log.Info().
		Str("session_code", code).
		Msg("relaying session")
	return nil
}

// Leave drops a reference to code, unsubscribing with the last one
func (r *Relay) Leave(code string) {
	r.mu.Lock()
	rs, ok := r.sessions[code]
	if !ok {
		r.mu.Unlock()
		return
	}
	rs.refs--
	if rs.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, code)
	r.mu.Unlock()

	if rs.unsub != nil {
		rs.unsub()
	}
	log.Info().
		Str("session_code", code).
		Msg("stopped relaying session")
}

// ActiveSessions lists the relayed session codes
func (r *Relay) ActiveSessions() []string {
	r.mu.Lock()
	codes := make([]string, 0, len(r.sessions))
	for code := range r.sessions {
		codes = append(codes, code)
	}
	r.mu.Unlock()

	sort.Strings(codes)
	return codes
}

// Close releases every subscription
func (r *Relay) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*relayedSession)
	r.mu.Unlock()

	for _, rs := range sessions {
		if rs.unsub != nil {
			rs.unsub()
		}
	}
}

func (r *Relay) forward(code string, rec session.Record) {
	event, err := NewSessionEvent(EventTypeSessionUpdated, code, rec)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to build session event")
		return
	}

	r.bmu.RLock()
	b := r.broadcaster
	r.bmu.RUnlock()

	if b == nil {
		log.Warn().Str("session_code", code).Msg("no broadcaster, dropping session event")
		return
	}
	b.BroadcastToSession(code, event)
}
