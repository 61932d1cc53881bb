package sqlutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Helper functions for converting between Go pointers and pgtype values

// ToText converts a Go string pointer to pgtype.Text
func ToText(val *string) pgtype.Text {
	if val == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *val, Valid: true}
}

// FromText converts pgtype.Text to a Go string pointer
func FromText(val pgtype.Text) *string {
	if !val.Valid {
		return nil
	}
	s := val.String
	return &s
}

// ToTimestamptz converts a Go time pointer to pgtype.Timestamptz
func ToTimestamptz(val *time.Time) pgtype.Timestamptz {
	if val == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *val, Valid: true}
}

// FromTimestamptz converts pgtype.Timestamptz to a Go time pointer
func FromTimestamptz(val pgtype.Timestamptz) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time
	return &t
}

// ToNullUUID converts a Go UUID pointer to uuid.NullUUID
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// FromNullUUID converts uuid.NullUUID to Go UUID pointer
func FromNullUUID(val uuid.NullUUID) *uuid.UUID {
	if !val.Valid {
		return nil
	}
	id := val.UUID
	return &id
}
