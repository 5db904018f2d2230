package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/presentation/session"
	"github.com/musicmind/academy/go/internal/presentation/store/fanout"
	"github.com/musicmind/academy/go/internal/sqlutil"

	_ "modernc.org/sqlite"
)

// Store keeps session records in a local sqlite file. Change notification
// is in-process only, so every reader must share the writer's process.
type Store struct {
	db  *sql.DB
	hub *fanout.Hub

	// orders writes against initial reads for new subscriptions
	mu sync.Mutex
}

// Open creates the database file and schema if needed.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, hub: fanout.NewHub()}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("opened sqlite session store")
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS presentation_sessions (
  session_code TEXT PRIMARY KEY,
  current_stage TEXT,
  countdown_time INTEGER,
  written_at_ms INTEGER NOT NULL DEFAULT 0
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create presentation_sessions table: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, code string) (session.Record, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return session.Record{}, session.ErrInvalidSessionCode
	}

	const query = `
SELECT current_stage, countdown_time, written_at_ms
FROM presentation_sessions
WHERE session_code = ?`

	var (
		stage     sql.NullString
		countdown sql.NullInt64
		writtenAt int64
	)
	err := s.db.QueryRowContext(ctx, query, code).Scan(&stage, &countdown, &writtenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, session.ErrRecordNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("select session record: %w", err)
	}
	return session.Record{
		CurrentStage:  sqlutil.FromNullString(stage, ""),
		CountdownTime: sqlutil.FromNullInt64(countdown),
		Timestamp:     writtenAt,
	}, nil
}

func (s *Store) Put(ctx context.Context, code string, rec session.Record) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return session.ErrInvalidSessionCode
	}

	const stmt = `
INSERT INTO presentation_sessions (session_code, current_stage, countdown_time, written_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(session_code) DO UPDATE SET
  current_stage=excluded.current_stage,
  countdown_time=excluded.countdown_time,
  written_at_ms=excluded.written_at_ms;`

	var stage sql.NullString
	if v := strings.TrimSpace(rec.CurrentStage); v != "" {
		stage = sql.NullString{String: v, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, stmt, code, stage, sqlutil.ToNullInt64(rec.CountdownTime), rec.Timestamp)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert session record: %w", err)
	}

	s.hub.Publish(code, rec)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, code string, onChange func(session.Record)) (session.Unsubscribe, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, session.ErrInvalidSessionCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

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
