package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

func TestRowRoundTrip(t *testing.T) {
	t.Parallel()

	rec := session.NewRecord("daw-tutorial", 300, time.UnixMilli(1700000000000))
	assert.Equal(t, rec, rowFor(rec).record())

	stopOnly := 0
	r := rowFor(session.Record{CountdownTime: &stopOnly})
	assert.False(t, r.stage.Valid)
	assert.True(t, r.countdown.Valid)
	assert.False(t, r.record().IsEmpty())

	assert.True(t, rowFor(session.Record{}).record().IsEmpty())
}

func TestMetadataFor(t *testing.T) {
	t.Parallel()

	meta, err := metadataFor("")
	require.NoError(t, err)
	assert.False(t, meta.Valid)

	meta, err = metadataFor("presenter-serve")
	require.NoError(t, err)
	assert.True(t, meta.Valid)
	assert.JSONEq(t, `{"writer":"presenter-serve"}`, string(meta.RawMessage))
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	assert.Equal(t, "session_records", cfg.NotifyChannel)
	assert.Equal(t, 90*time.Second, cfg.PingInterval)
}

func TestNotificationCarriesEachCommit(t *testing.T) {
	t.Parallel()

	at := time.UnixMilli(1700000000000)
	stop, err := encodeNotification("ABC123", rowFor(session.NewRecord("activity", 0, at)).record())
	require.NoError(t, err)
	restart, err := encodeNotification("ABC123", rowFor(session.NewRecord("activity", 90, at.Add(time.Second))).record())
	require.NoError(t, err)

	first, err := parseNotification(stop)
	require.NoError(t, err)
	second, err := parseNotification(restart)
	require.NoError(t, err)

	assert.Equal(t, "ABC123", first.SessionCode)
	require.NotNil(t, first.Record.CountdownTime)
	require.NotNil(t, second.Record.CountdownTime)
	assert.Equal(t, 0, *first.Record.CountdownTime)
	assert.Equal(t, 90, *second.Record.CountdownTime)
	assert.Equal(t, "activity", second.Record.CurrentStage)
}

func TestParseNotificationRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	_, err := parseNotification("ABC123")
	assert.Error(t, err)

	_, err = parseNotification(`{"session_code":" ","record":{"currentStage":"activity"}}`)
	assert.ErrorIs(t, err, session.ErrInvalidSessionCode)
}
