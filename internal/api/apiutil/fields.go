package apiutil

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// ParseLimit reads an optional positive limit, capped at max.
func ParseLimit(raw string, def, max int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	value, err := ParsePositiveInt64Field(raw, "limit")
	if err != nil {
		return 0, err
	}
	if value > max {
		value = max
	}
	return value, nil
}

// ParseDate parses an optional YYYY-MM-DD date. Empty is null.
func ParseDate(raw string, field string) (sql.NullTime, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sql.NullTime{}, nil
	}
	parsed, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return sql.NullTime{}, FieldError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return sql.NullTime{Time: parsed, Valid: true}, nil
}

// ParseTimestamp parses an optional RFC 3339 timestamp into UTC.
func ParseTimestamp(raw string, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, FieldError{Field: field, Reason: "must be an RFC 3339 timestamp"}
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

func FormatDate(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(DateLayout)
}

func NullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

func ToNullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// PathID parses a positive integer path value.
func PathID(raw string) (int64, error) {
	id, err := ParsePositiveInt64Field(raw, "id")
	if err != nil {
		return 0, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}
