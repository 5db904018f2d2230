package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/musicmind/academy/go/internal/presentation/session"
	"github.com/musicmind/academy/go/internal/presentation/store/fanout"
	"github.com/musicmind/academy/go/internal/sqlutil"
)

type Config struct {
	DSN           string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration // Keepalive for the listener connection
	Writer        string        // Recorded in the metadata column when set
}

func DefaultConfig() Config {
	return Config{
		NotifyChannel: "session_records",
		PingInterval:  90 * time.Second,
	}
}

const (
	upsertRecord = `
INSERT INTO presentation_sessions (session_code, current_stage, countdown_time, written_at_ms, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (session_code) DO UPDATE SET
    current_stage  = EXCLUDED.current_stage,
    countdown_time = EXCLUDED.countdown_time,
    written_at_ms  = EXCLUDED.written_at_ms,
    metadata       = EXCLUDED.metadata,
    updated_at     = now()`

	selectRecord = `
SELECT current_stage, countdown_time, written_at_ms
FROM presentation_sessions
WHERE session_code = $1`

	notifyRecord = `SELECT pg_notify($1, $2)`
)

// Store keeps session records in Postgres. Each write notifies on a channel
// with the committed record as payload; a single pq.Listener fans it out to
// subscribers of that session code.
type Store struct {
	db       *sql.DB
	listener *pq.Listener
	hub      *fanout.Hub
	cfg      Config

	// serializes row reads that feed subscribers so an initial read cannot
	// be delivered after a newer notification
	fetchMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// New starts listening on cfg.NotifyChannel. Close stops the listener.
func New(db *sql.DB, cfg Config) (*Store, error) {
	l := pq.NewListener(
		cfg.DSN,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for session notifications")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:       db,
		listener: l,
		hub:      fanout.NewHub(),
		cfg:      cfg,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.listen(ctx)
	return s, nil
}

// Close stops the listener loop and closes the listener connection. The
// *sql.DB belongs to the caller.
func (s *Store) Close() error {
	s.cancel()
	<-s.done
	return s.listener.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Get reads the record for code.
func (s *Store) Get(ctx context.Context, code string) (session.Record, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return session.Record{}, session.ErrInvalidSessionCode
	}

	var r row
	err := s.db.QueryRowContext(ctx, selectRecord, code).Scan(&r.stage, &r.countdown, &r.writtenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, session.ErrRecordNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("failed to fetch session record: %w", err)
	}
	return r.record(), nil
}

// Put upserts the record and notifies listeners in the same transaction, so
// the notification is only sent if the write commits.
func (s *Store) Put(ctx context.Context, code string, rec session.Record) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return session.ErrInvalidSessionCode
	}

	r := rowFor(rec)
	meta, err := metadataFor(s.cfg.Writer)
	if err != nil {
		return err
	}

	payload, err := encodeNotification(code, r.record())
	if err != nil {
		return err
	}

	return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertRecord, code, r.stage, r.countdown, r.writtenAt, meta); err != nil {
			return fmt.Errorf("failed to upsert session record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, notifyRecord, s.cfg.NotifyChannel, payload); err != nil {
			return fmt.Errorf("failed to notify session record: %w", err)
		}
		return nil
	})
}

// Subscribe delivers the stored record, if any, then every committed write.
func (s *Store) Subscribe(ctx context.Context, code string, onChange func(session.Record)) (session.Unsubscribe, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, session.ErrInvalidSessionCode
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	var initial []session.Record
	rec, err := s.Get(ctx, code)
	switch {
	case errors.Is(err, session.ErrRecordNotFound):
	case err != nil:
		return nil, err
	default:
		initial = append(initial, rec)
	}
	return s.hub.Subscribe(code, onChange, initial...), nil
}

func (s *Store) listen(ctx context.Context) {
	defer close(s.done)

	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session listener shutting down")
			return
		case note := <-s.listener.Notify:
			if note == nil {
				// The connection was re-established and notifications may
				// have been missed; redeliver every watched record.
				log.Warn().Msg("listener reconnected, resyncing watched sessions")
				for _, code := range s.hub.Codes() {
					s.refresh(ctx, code)
				}
				continue
			}
			s.deliver(note.Extra)
		case <-pingTicker.C:
			if err := s.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// deliver publishes the record carried by a notification. Every commit is
// delivered with its own value, so a stop followed by a restart of the same
// length reaches subscribers as two distinct records.
func (s *Store) deliver(payload string) {
	n, err := parseNotification(payload)
	if err != nil {
		log.Warn().Err(err).Str("payload", payload).Msg("dropping unreadable notification")
		return
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	if s.hub.Count(n.SessionCode) == 0 {
		return
	}
	s.hub.Publish(n.SessionCode, n.Record)
}

// refresh re-reads the row; used only after the listener reconnects.
func (s *Store) refresh(ctx context.Context, code string) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if s.hub.Count(code) == 0 {
		return
	}
	rec, err := s.Get(ctx, code)
	if errors.Is(err, session.ErrRecordNotFound) {
		return
	}
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to refresh session record")
		return
	}
	s.hub.Publish(code, rec)
}

type notification struct {
	SessionCode string         `json:"session_code"`
	Record      session.Record `json:"record"`
}

func encodeNotification(code string, rec session.Record) (string, error) {
	data, err := json.Marshal(notification{SessionCode: code, Record: rec})
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}
	return string(data), nil
}

func parseNotification(payload string) (notification, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return notification{}, fmt.Errorf("unmarshal notification: %w", err)
	}
	n.SessionCode = strings.TrimSpace(n.SessionCode)
	if n.SessionCode == "" {
		return notification{}, session.ErrInvalidSessionCode
	}
	return n, nil
}

type row struct {
	stage     sql.NullString
	countdown sql.NullInt64
	writtenAt int64
}

func rowFor(rec session.Record) row {
	r := row{
		countdown: sqlutil.ToNullInt64(rec.CountdownTime),
		writtenAt: rec.Timestamp,
	}
	if stage := strings.TrimSpace(rec.CurrentStage); stage != "" {
		r.stage = sql.NullString{String: stage, Valid: true}
	}
	return r
}

func (r row) record() session.Record {
	return session.Record{
		CurrentStage:  sqlutil.FromNullString(r.stage, ""),
		CountdownTime: sqlutil.FromNullInt64(r.countdown),
		Timestamp:     r.writtenAt,
	}
}

func metadataFor(writer string) (pqtype.NullRawMessage, error) {
	if writer == "" {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(map[string]string{"writer": writer})
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: len(data) > 0}, nil
}
