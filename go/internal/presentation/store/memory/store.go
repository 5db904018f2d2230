package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/musicmind/academy/go/internal/presentation/session"
	"github.com/musicmind/academy/go/internal/presentation/store/fanout"
)

// Store is an in-process session store. It backs single-process deployments
// and tests.
type Store struct {
	mu      sync.RWMutex
	records map[string]session.Record
	hub     *fanout.Hub
}

func New() *Store {
	return &Store{
		records: make(map[string]session.Record),
		hub:     fanout.NewHub(),
	}
}

// Get returns the stored record for code.
func (s *Store) Get(_ context.Context, code string) (session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[strings.TrimSpace(code)]
	if !ok {
		return session.Record{}, session.ErrRecordNotFound
	}
	return rec, nil
}

// Put replaces the record for code and notifies its subscribers.
func (s *Store) Put(_ context.Context, code string, rec session.Record) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return session.ErrInvalidSessionCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[code] = rec
	s.hub.Publish(code, rec)
	return nil
}

// Delete removes the record. Subscribers are not notified.
func (s *Store) Delete(_ context.Context, code string) {
	s.mu.Lock()
	delete(s.records, strings.TrimSpace(code))
	s.mu.Unlock()
}

// Subscribe delivers the current record, if any, then every later Put.
func (s *Store) Subscribe(_ context.Context, code string, onChange func(session.Record)) (session.Unsubscribe, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, session.ErrInvalidSessionCode
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var initial []session.Record
	if rec, ok := s.records[code]; ok {
		initial = append(initial, rec)
	}
	return s.hub.Subscribe(code, onChange, initial...), nil
}

// Subscribers returns the number of live subscriptions for code.
func (s *Store) Subscribers(code string) int {
	return s.hub.Count(strings.TrimSpace(code))
}
