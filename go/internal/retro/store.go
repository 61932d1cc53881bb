package retro

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/models"
)

// CreateBoardParams holds the fields needed to persist a new board.
type CreateBoardParams struct {
	ProjectID        uuid.UUID
	Name             string
	Template         models.BoardTemplate
	TimerDurationSec int
	VoteLimit        int
	IsAnonymous      bool
	CreatedBy        string
	// Columns are created with the board in the given order.
	Columns []NewColumn
}

// NewColumn describes a column created together with its board.
type NewColumn struct {
	Name  string
	Color string
}

// UpdateBoardParams is a partial board update; nil fields are left unchanged.
type UpdateBoardParams struct {
	Name             *string
	TimerDurationSec *int
	VoteLimit        *int
	IsAnonymous      *bool
}

// CreateColumnParams holds the fields needed to persist a column.
type CreateColumnParams struct {
	BoardID  uuid.UUID
	Name     string
	Position int
	Color    string
}

// CreateNoteParams holds the fields needed to persist a note.
type CreateNoteParams struct {
	ColumnID    uuid.UUID
	AuthorID    string
	Text        string
	Color       *string
	Position    int
	IsAnonymous bool
}

// UpdateNoteParams is a partial note update; nil fields are left unchanged.
type UpdateNoteParams struct {
	Text     *string
	Position *int
	ColumnID *uuid.UUID
}

// CreateActionItemParams holds the fields needed to persist an action item.
type CreateActionItemParams struct {
	BoardID    uuid.UUID
	NoteID     *uuid.UUID
	Text       string
	AssigneeID *string
}

// UpdateActionItemParams is a partial action item update. An empty
// AssigneeID clears the assignee.
type UpdateActionItemParams struct {
	Text       *string
	AssigneeID *string
	IssueID    *string
	IsDone     *bool
}

// Store is the storage collaborator. Every method returns an error wrapping
// ErrNotFound when the referenced row is absent. Deleting a note removes its
// votes; deleting a board removes its columns, notes, votes and action items.
type Store interface {
	CreateBoard(ctx context.Context, params CreateBoardParams) (*models.Board, error)
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	UpdateBoard(ctx context.Context, id uuid.UUID, params UpdateBoardParams) (*models.Board, error)
	SetBoardTimer(ctx context.Context, id uuid.UUID, running bool, startedAt *time.Time) (*models.Board, error)
	DeleteBoard(ctx context.Context, id uuid.UUID) error

	CreateColumn(ctx context.Context, params CreateColumnParams) (*models.Column, error)
	GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error)
	ListColumns(ctx context.Context, boardID uuid.UUID) ([]models.Column, error)

	CreateNote(ctx context.Context, params CreateNoteParams) (*models.Note, error)
	GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error)
	UpdateNote(ctx context.Context, id uuid.UUID, params UpdateNoteParams) (*models.Note, error)
	DeleteNote(ctx context.Context, id uuid.UUID) error
	ListNotes(ctx context.Context, boardID uuid.UUID) ([]models.Note, error)
	MaxNotePosition(ctx context.Context, columnID uuid.UUID) (int, bool, error)

	GetVote(ctx context.Context, noteID uuid.UUID, userID string) (*models.Vote, error)
	CreateVote(ctx context.Context, noteID uuid.UUID, userID string) (*models.Vote, error)
	DeleteVote(ctx context.Context, noteID uuid.UUID, userID string) error
	CountUserVotes(ctx context.Context, boardID uuid.UUID, userID string) (int, error)
	CountNoteVotes(ctx context.Context, boardID uuid.UUID) (map[uuid.UUID]int, error)

	CreateActionItem(ctx context.Context, params CreateActionItemParams) (*models.ActionItem, error)
	GetActionItem(ctx context.Context, id uuid.UUID) (*models.ActionItem, error)
	UpdateActionItem(ctx context.Context, id uuid.UUID, params UpdateActionItemParams) (*models.ActionItem, error)
	DeleteActionItem(ctx context.Context, id uuid.UUID) error
	ListActionItems(ctx context.Context, boardID uuid.UUID) ([]models.ActionItem, error)
}
