package sqlutil

import "database/sql"

// ToNullInt64 converts a Go int pointer to sql.NullInt64
func ToNullInt64(val *int) sql.NullInt64 {
	if val == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(*val), Valid: true}
}

// FromNullInt64 converts sql.NullInt64 to a Go int pointer
func FromNullInt64(val sql.NullInt64) *int {
	if !val.Valid {
		return nil
	}
	i := int(val.Int64)
	return &i
}

// FromNullString converts sql.NullString to a Go string with default
func FromNullString(val sql.NullString, defaultVal string) string {
	if !val.Valid {
		return defaultVal
	}
	return val.String
}
