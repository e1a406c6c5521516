package dbx

import (
	"fmt"
	"time"
)

// sqliteTimeLayout is fixed-width UTC so that TEXT columns sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatSQLiteTime renders t for a SQLite TEXT timestamp column.
func FormatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// ParseSQLiteTime reads a value written by FormatSQLiteTime.
func ParseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
