package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// one connection so every statement sees the same in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE stages (code TEXT PRIMARY KEY, stage TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countStages(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM stages`).Scan(&n))
	return n
}

func TestRunCommits(t *testing.T) {
	db := openTestDB(t)

	err := Run(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO stages (code, stage) VALUES ('ABC123', 'daw-tutorial')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countStages(t, db))
}

func TestRunRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := Run(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO stages (code, stage) VALUES ('ABC123', 'daw-tutorial')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countStages(t, db))
}

func TestRunRollsBackOnPanic(t *testing.T) {
	db := openTestDB(t)

	assert.PanicsWithValue(t, "boom", func() {
		_ = Run(context.Background(), db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(`INSERT INTO stages (code, stage) VALUES ('ABC123', 'daw-tutorial')`); err != nil {
				return err
			}
			panic("boom")
		})
	})
	assert.Zero(t, countStages(t, db))
}

func TestRunWrapsBeginError(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, db, func(*sql.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}
