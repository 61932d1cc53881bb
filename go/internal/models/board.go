package models

import (
	"time"

	"github.com/google/uuid"
)

// BoardTemplate defines which set of columns a board starts with.
type BoardTemplate string

const (
	BoardTemplateStartStopContinue BoardTemplate = "start_stop_continue"
	BoardTemplateMadSadGlad        BoardTemplate = "mad_sad_glad"
	BoardTemplateFourLs            BoardTemplate = "four_ls"
	BoardTemplateWentWellImprove   BoardTemplate = "went_well_improve"
	BoardTemplateCustom            BoardTemplate = "custom"
)

// Board is a retrospective board owned by a project.
type Board struct {
	ID               uuid.UUID     `json:"id"`
	ProjectID        uuid.UUID     `json:"project_id"`
	Name             string        `json:"name"`
	Template         BoardTemplate `json:"template"`
	TimerDurationSec int           `json:"timer_duration_sec"`
	VoteLimit        int           `json:"vote_limit"`
	IsAnonymous      bool          `json:"is_anonymous"`
	TimerRunning     bool          `json:"timer_running"`
	TimerStartedAt   *time.Time    `json:"timer_started_at,omitempty"`
	CreatedBy        string        `json:"created_by"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Column belongs to exactly one board for its whole life.
type Column struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"board_id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a sticky note. Position orders notes within a column only.
type Note struct {
	ID          uuid.UUID `json:"id"`
	ColumnID    uuid.UUID `json:"column_id"`
	AuthorID    string    `json:"author_id"`
	Text        string    `json:"text"`
	Color       *string   `json:"color,omitempty"`
	Position    int       `json:"position"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NoteLess reports whether a sorts before b within a column. Equal positions
// fall back to creation order and then id so a stored state always renders
// the same way.
func NoteLess(a, b Note) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// Vote records that a user voted for a note. At most one per (note, user).
type Vote struct {
	NoteID    uuid.UUID `json:"note_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionItem is a follow-up captured from a retrospective.
type ActionItem struct {
	ID         uuid.UUID  `json:"id"`
	BoardID    uuid.UUID  `json:"board_id"`
	NoteID     *uuid.UUID `json:"note_id,omitempty"`
	Text       string     `json:"text"`
	AssigneeID *string    `json:"assignee_id,omitempty"`
	IssueID    *string    `json:"issue_id,omitempty"`
	IsDone     bool       `json:"is_done"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Identity is the verified user behind a connection.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}
