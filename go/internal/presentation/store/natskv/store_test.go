package natskv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

func TestKeyFor(t *testing.T) {
	t.Parallel()

	key, err := keyFor(" ABC123 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", key)

	for _, bad := range []string{"", "  ", "has space", "star*", "gt>"} {
		_, err := keyFor(bad)
		assert.ErrorIs(t, err, session.ErrInvalidSessionCode, "code %q", bad)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	rec, err := decode([]byte(`{"currentStage":"daw-tutorial","countdownTime":300,"timestamp":1700000000000}`))
	require.NoError(t, err)
	assert.Equal(t, "daw-tutorial", rec.CurrentStage)
	require.NotNil(t, rec.CountdownTime)
	assert.Equal(t, 300, *rec.CountdownTime)

	// A zero countdown is a stop command, not an absent field.
	rec, err = decode([]byte(`{"countdownTime":0}`))
	require.NoError(t, err)
	require.NotNil(t, rec.CountdownTime)
	assert.False(t, rec.IsEmpty())

	rec, err = decode(nil)
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())

	_, err = decode([]byte(`{"currentStage":`))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	assert.Equal(t, "SESSIONS", cfg.Bucket)
	assert.Equal(t, -1, cfg.MaxReconnects)
}
