// Package notes manages sticky notes: creation, edits, moves between columns
// and deletion. Positions are last-write-wins; a move never shifts other notes.
package notes

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/rs/zerolog/log"
)

// MaxTextLength is the longest note body accepted, in characters.
const MaxTextLength = 2000

// NotesRepository defines what the app layer needs from storage
type NotesRepository interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error)
	GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error)
	CreateNote(ctx context.Context, params retro.CreateNoteParams) (*models.Note, error)
	UpdateNote(ctx context.Context, id uuid.UUID, params retro.UpdateNoteParams) (*models.Note, error)
	DeleteNote(ctx context.Context, id uuid.UUID) error
	ListNotes(ctx context.Context, boardID uuid.UUID) ([]models.Note, error)
	MaxNotePosition(ctx context.Context, columnID uuid.UUID) (int, bool, error)
}

// CreateRequest is the input for Create.
type CreateRequest struct {
	ColumnID uuid.UUID
	AuthorID string
	Text     string
	Color    *string
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Text     *string
	Position *int
}

// Result carries a note together with the board whose room should hear about it.
type Result struct {
	BoardID uuid.UUID
	Note    *models.Note
}

// App handles note business logic
type App struct {
	repo NotesRepository
}

// NewApp creates a new notes App
func NewApp(repo NotesRepository) *App {
	return &App{repo: repo}
}

// Create adds a note at the end of its column. Notes are always stored as
// anonymous; whether to show the author is a display decision.
func (a *App) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	text, err := validateText(req.Text)
	if err != nil {
		return nil, err
	}
	if req.AuthorID == "" {
		return nil, retro.ValidationError("author is required")
	}
	if req.Color != nil && strings.TrimSpace(*req.Color) == "" {
		req.Color = nil
	}

	col, err := a.repo.GetColumn(ctx, req.ColumnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get column: %w", err)
	}

	position := 0
	highest, found, err := a.repo.MaxNotePosition(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read column positions: %w", err)
	}
	if found {
		position = highest + 1
	}

	note, err := a.repo.CreateNote(ctx, retro.CreateNoteParams{
		ColumnID:    col.ID,
		AuthorID:    req.AuthorID,
		Text:        text,
		Color:       req.Color,
		Position:    position,
		IsAnonymous: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	log.Debug().
		Str("board_id", col.BoardID.String()).
		Str("column_id", col.ID.String()).
		Str("note_id", note.ID.String()).
		Int("position", note.Position).
		Msg("note created")
	return &Result{BoardID: col.BoardID, Note: note}, nil
}

// Update changes the text and/or position of a note in place.
func (a *App) Update(ctx context.Context, noteID uuid.UUID, req UpdateRequest) (*Result, error) {
	params := retro.UpdateNoteParams{}
	if req.Text != nil {
		text, err := validateText(*req.Text)
		if err != nil {
			return nil, err
		}
		params.Text = &text
	}
	if req.Position != nil {
		if err := validatePosition(*req.Position); err != nil {
			return nil, err
		}
		params.Position = req.Position
	}

	boardID, err := a.BoardForNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	note, err := a.repo.UpdateNote(ctx, noteID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return &Result{BoardID: boardID, Note: note}, nil
}

// Move puts a note into targetColumnID at exactly the given position. Other
// notes keep their positions, so ties are possible and resolved by
// models.NoteLess when listing.
func (a *App) Move(ctx context.Context, noteID, targetColumnID uuid.UUID, position int) (*Result, error) {
	if err := validatePosition(position); err != nil {
		return nil, err
	}

	note, err := a.repo.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	source, err := a.repo.GetColumn(ctx, note.ColumnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	target, err := a.repo.GetColumn(ctx, targetColumnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get target column: %w", err)
	}
	if target.BoardID != source.BoardID {
		return nil, retro.ValidationError("notes cannot be moved to another board")
	}

	moved, err := a.repo.UpdateNote(ctx, noteID, retro.UpdateNoteParams{
		ColumnID: &target.ID,
		Position: &position,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to move note: %w", err)
	}

	log.Debug().
		Str("board_id", source.BoardID.String()).
		Str("note_id", noteID.String()).
		Str("from_column", source.ID.String()).
		Str("to_column", target.ID.String()).
		Int("position", position).
		Msg("note moved")
	return &Result{BoardID: source.BoardID, Note: moved}, nil
}

// Delete removes a note and, through storage, its votes. It returns the board
// the note belonged to.
func (a *App) Delete(ctx context.Context, noteID uuid.UUID) (uuid.UUID, error) {
	boardID, err := a.BoardForNote(ctx, noteID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := a.repo.DeleteNote(ctx, noteID); err != nil {
		return uuid.Nil, fmt.Errorf("failed to delete note: %w", err)
	}
	return boardID, nil
}

// ListBoard returns every note on the board, grouped by column in column
// order and sorted within each column.
func (a *App) ListBoard(ctx context.Context, boardID uuid.UUID) ([]models.Note, error) {
	if _, err := a.repo.GetBoard(ctx, boardID); err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	notes, err := a.repo.ListNotes(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// BoardForNote resolves the board a note lives on.
func (a *App) BoardForNote(ctx context.Context, noteID uuid.UUID) (uuid.UUID, error) {
	note, err := a.repo.GetNote(ctx, noteID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get note: %w", err)
	}
	return a.BoardForColumn(ctx, note.ColumnID)
}

// BoardForColumn resolves the board a column belongs to.
func (a *App) BoardForColumn(ctx context.Context, columnID uuid.UUID) (uuid.UUID, error) {
	col, err := a.repo.GetColumn(ctx, columnID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get column: %w", err)
	}
	return col.BoardID, nil
}

func validateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", retro.ValidationError("note text cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxTextLength {
		return "", retro.ValidationError("note text cannot exceed %d characters", MaxTextLength)
	}
	return trimmed, nil
}

func validatePosition(position int) error {
	if position < 0 {
		return retro.ValidationError("position must be zero or greater")
	}
	return nil
}
