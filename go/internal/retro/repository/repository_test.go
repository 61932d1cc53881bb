package repository

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/retroboard/go/internal/retro"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		notFound bool
		message  string
	}{
		{"no rows", pgx.ErrNoRows, true, "note not found"},
		{"foreign key", &pgconn.PgError{Code: "23503"}, true, "note not found"},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false, ""},
		{"other", errors.New("connection reset"), false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.err, "note")
			if errors.Is(got, retro.ErrNotFound) != tc.notFound {
				t.Fatalf("translate(%v) = %v, notFound want %v", tc.err, got, tc.notFound)
			}
			if tc.notFound && retro.PublicMessage(got) != tc.message {
				t.Fatalf("unexpected public message %q", retro.PublicMessage(got))
			}
			if !tc.notFound && !errors.Is(got, tc.err) {
				t.Fatalf("driver error should stay wrapped, got %v", got)
			}
		})
	}
}

func TestSchemaDeclaresCascadesAndVoteUniqueness(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"retro_boards", "retro_columns", "retro_notes", "retro_votes", "retro_action_items"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("schema is missing table %s", table)
		}
	}
	if strings.Count(schema, "ON DELETE CASCADE") < 4 {
		t.Fatal("child rows must cascade when their parent is deleted")
	}
	if !strings.Contains(schema, "PRIMARY KEY (note_id, user_id)") {
		t.Fatal("a user may hold at most one vote per note")
	}
}
