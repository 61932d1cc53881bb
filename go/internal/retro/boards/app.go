// Package boards creates and maintains retrospective boards and assembles the
// full board state sent to clients.
package boards

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/timer"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimerDurationSec = 300
	DefaultVoteLimit        = 5
	MaxVoteLimit            = 100
	MaxNameLength           = 200
	MaxColumns              = 12
)

// BoardsRepository defines what the app layer needs from the repository
type BoardsRepository interface {
	CreateBoard(ctx context.Context, params retro.CreateBoardParams) (*models.Board, error)
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	UpdateBoard(ctx context.Context, id uuid.UUID, params retro.UpdateBoardParams) (*models.Board, error)
	DeleteBoard(ctx context.Context, id uuid.UUID) error
	CreateColumn(ctx context.Context, params retro.CreateColumnParams) (*models.Column, error)
	ListColumns(ctx context.Context, boardID uuid.UUID) ([]models.Column, error)
	ListNotes(ctx context.Context, boardID uuid.UUID) ([]models.Note, error)
	CountNoteVotes(ctx context.Context, boardID uuid.UUID) (map[uuid.UUID]int, error)
	ListActionItems(ctx context.Context, boardID uuid.UUID) ([]models.ActionItem, error)
}

// CreateBoardRequest is the input for Create. Nil settings take defaults.
type CreateBoardRequest struct {
	ProjectID        uuid.UUID
	Name             string
	Template         models.BoardTemplate
	TimerDurationSec *int
	VoteLimit        *int
	IsAnonymous      *bool
	CreatedBy        string
}

// UpdateBoardRequest is a partial board update.
type UpdateBoardRequest struct {
	Name        *string `json:"name,omitempty"`
	VoteLimit   *int    `json:"vote_limit,omitempty"`
	IsAnonymous *bool   `json:"is_anonymous,omitempty"`
}

// NoteView is a note with its vote count.
type NoteView struct {
	models.Note
	VoteCount int `json:"vote_count"`
}

// Snapshot is the complete state of a board.
type Snapshot struct {
	Board       models.Board        `json:"board"`
	Columns     []models.Column     `json:"columns"`
	Notes       []NoteView          `json:"notes"`
	ActionItems []models.ActionItem `json:"action_items"`
	Timer       *timer.State        `json:"timer"`
}

// App handles board business logic
type App struct {
	repo    BoardsRepository
	catalog *Catalog
	clock   clockwork.Clock
}

// NewApp creates a new boards App
func NewApp(repo BoardsRepository, catalog *Catalog, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{repo: repo, catalog: catalog, clock: clock}
}

// Create makes a board and its template columns in one step.
func (a *App) Create(ctx context.Context, req CreateBoardRequest) (*models.Board, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if req.ProjectID == uuid.Nil {
		return nil, retro.ValidationError("project is required")
	}
	if req.CreatedBy == "" {
		return nil, retro.ValidationError("creator is required")
	}
	if req.Template == "" {
		req.Template = models.BoardTemplateStartStopContinue
	}

	duration := DefaultTimerDurationSec
	if req.TimerDurationSec != nil {
		duration = *req.TimerDurationSec
	}
	if duration <= 0 || duration > timer.MaxDurationSec {
		return nil, retro.ValidationError("timer duration must be between 1 and %d seconds", timer.MaxDurationSec)
	}
	voteLimit := DefaultVoteLimit
	if req.VoteLimit != nil {
		voteLimit = *req.VoteLimit
	}
	if err := validateVoteLimit(voteLimit); err != nil {
		return nil, err
	}
	anonymous := true
	if req.IsAnonymous != nil {
		anonymous = *req.IsAnonymous
	}

	columns, err := a.catalog.Columns(req.Template)
	if err != nil {
		return nil, err
	}

	board, err := a.repo.CreateBoard(ctx, retro.CreateBoardParams{
		ProjectID:        req.ProjectID,
		Name:             name,
		Template:         req.Template,
		TimerDurationSec: duration,
		VoteLimit:        voteLimit,
		IsAnonymous:      anonymous,
		CreatedBy:        req.CreatedBy,
		Columns:          columns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	log.Info().
		Str("board_id", board.ID.String()).
		Str("project_id", board.ProjectID.String()).
		Str("template", string(board.Template)).
		Int("columns", len(columns)).
		Msg("board created")
	return board, nil
}

// Get retrieves a board by ID
func (a *App) Get(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	board, err := a.repo.GetBoard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return board, nil
}

// Update changes the name, vote cap or anonymity of a board. Lowering the cap
// keeps votes already cast.
func (a *App) Update(ctx context.Context, id uuid.UUID, req UpdateBoardRequest) (*models.Board, error) {
	params := retro.UpdateBoardParams{IsAnonymous: req.IsAnonymous}
	if req.Name != nil {
		name, err := validateName(*req.Name)
		if err != nil {
			return nil, err
		}
		params.Name = &name
	}
	if req.VoteLimit != nil {
		if err := validateVoteLimit(*req.VoteLimit); err != nil {
			return nil, err
		}
		params.VoteLimit = req.VoteLimit
	}

	board, err := a.repo.UpdateBoard(ctx, id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update board: %w", err)
	}
	return board, nil
}

// Delete removes a board. Storage cascades to columns, notes, votes and
// action items.
func (a *App) Delete(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.DeleteBoard(ctx, id); err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	log.Info().Str("board_id", id.String()).Msg("board deleted")
	return nil
}

// AddColumn appends a column to a custom board.
func (a *App) AddColumn(ctx context.Context, boardID uuid.UUID, name, color string) (*models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, retro.ValidationError("column name cannot be empty")
	}

	board, err := a.repo.GetBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	if board.Template != models.BoardTemplateCustom {
		return nil, retro.ValidationError("columns can only be added to custom boards")
	}

	cols, err := a.repo.ListColumns(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	if len(cols) >= MaxColumns {
		return nil, retro.ValidationError("a board can have at most %d columns", MaxColumns)
	}
	position := 0
	for _, col := range cols {
		if col.Position >= position {
			position = col.Position + 1
		}
	}

	col, err := a.repo.CreateColumn(ctx, retro.CreateColumnParams{
		BoardID:  boardID,
		Name:     name,
		Position: position,
		Color:    color,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create column: %w", err)
	}
	return col, nil
}

// Snapshot assembles everything a client needs to render the board.
func (a *App) Snapshot(ctx context.Context, boardID uuid.UUID) (*Snapshot, error) {
	board, err := a.repo.GetBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	cols, err := a.repo.ListColumns(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	notes, err := a.repo.ListNotes(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	counts, err := a.repo.CountNoteVotes(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	items, err := a.repo.ListActionItems(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list action items: %w", err)
	}

	views := make([]NoteView, 0, len(notes))
	for _, note := range notes {
		views = append(views, NoteView{Note: note, VoteCount: counts[note.ID]})
	}
	if cols == nil {
		cols = []models.Column{}
	}
	if items == nil {
		items = []models.ActionItem{}
	}

	return &Snapshot{
		Board:       *board,
		Columns:     cols,
		Notes:       views,
		ActionItems: items,
		Timer:       timer.StateOf(board, a.clock.Now()),
	}, nil
}

// Templates lists the template kinds boards can be created from.
func (a *App) Templates() []models.BoardTemplate {
	return a.catalog.Kinds()
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", retro.ValidationError("board name cannot be empty")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", retro.ValidationError("board name cannot exceed %d characters", MaxNameLength)
	}
	return name, nil
}

func validateVoteLimit(limit int) error {
	if limit < 1 || limit > MaxVoteLimit {
		return retro.ValidationError("vote limit must be between 1 and %d", MaxVoteLimit)
	}
	return nil
}
