package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS presentation_sessions (
    session_code   TEXT PRIMARY KEY,
    current_stage  TEXT,
    countdown_time INTEGER,
    written_at_ms  BIGINT NOT NULL DEFAULT 0,
    metadata       JSONB,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the session table if it does not exist.
func Migrate(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("presentation_sessions schema applied")
	return nil
}
