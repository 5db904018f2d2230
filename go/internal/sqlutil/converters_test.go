package sqlutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullInt64RoundTrip(t *testing.T) {
	assert.False(t, ToNullInt64(nil).Valid)
	assert.Nil(t, FromNullInt64(sql.NullInt64{}))

	zero := 0
	n := ToNullInt64(&zero)
	assert.True(t, n.Valid)
	got := FromNullInt64(n)
	if assert.NotNil(t, got) {
		assert.Equal(t, 0, *got)
	}
}

func TestFromNullString(t *testing.T) {
	assert.Equal(t, "fallback", FromNullString(sql.NullString{}, "fallback"))
	assert.Equal(t, "locked", FromNullString(sql.NullString{String: "locked", Valid: true}, "fallback"))
}
