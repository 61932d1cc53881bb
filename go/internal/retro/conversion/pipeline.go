// Package conversion promotes notes to action items and action items to
// issues in the external tracker.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/rs/zerolog/log"
)

const (
	defaultIssueType     = "task"
	defaultIssuePriority = "medium"

	// MaxTextLength is the longest action item text accepted, in characters.
	MaxTextLength = 2000
)

// ErrNoIssueTracker is returned by ActionItemToIssue when no tracker is configured.
var ErrNoIssueTracker = errors.New("issue tracker not configured")

// Repository defines what the pipeline needs from storage
type Repository interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error)
	GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error)
	CreateActionItem(ctx context.Context, params retro.CreateActionItemParams) (*models.ActionItem, error)
	GetActionItem(ctx context.Context, id uuid.UUID) (*models.ActionItem, error)
	UpdateActionItem(ctx context.Context, id uuid.UUID, params retro.UpdateActionItemParams) (*models.ActionItem, error)
	DeleteActionItem(ctx context.Context, id uuid.UUID) error
	ListActionItems(ctx context.Context, boardID uuid.UUID) ([]models.ActionItem, error)
}

// IssueRequest is what the issue tracker needs to open an issue.
type IssueRequest struct {
	Title      string
	Type       string
	Priority   string
	AssigneeID *string
	ReporterID string
	ProjectID  uuid.UUID
}

// IssueCreator opens an issue and returns its id.
type IssueCreator interface {
	CreateIssue(ctx context.Context, req IssueRequest) (string, error)
}

// UpdateActionItemRequest is a partial update; nil fields are left unchanged.
type UpdateActionItemRequest struct {
	Text       *string
	AssigneeID *string
	IsDone     *bool
}

// Pipeline handles note and action item conversion
type Pipeline struct {
	repo   Repository
	issues IssueCreator
}

// NewPipeline creates a Pipeline. issues may be nil, in which case
// ActionItemToIssue fails with ErrNoIssueTracker.
func NewPipeline(repo Repository, issues IssueCreator) *Pipeline {
	return &Pipeline{repo: repo, issues: issues}
}

// NoteToActionItem copies a note's text into a new action item on the board.
// The note is left as is and may be converted again.
func (p *Pipeline) NoteToActionItem(ctx context.Context, boardID, noteID uuid.UUID, assigneeID *string) (*models.ActionItem, error) {
	note, err := p.repo.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	col, err := p.repo.GetColumn(ctx, note.ColumnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	if col.BoardID != boardID {
		return nil, retro.ValidationError("note does not belong to this board")
	}

	item, err := p.repo.CreateActionItem(ctx, retro.CreateActionItemParams{
		BoardID:    boardID,
		NoteID:     &note.ID,
		Text:       note.Text,
		AssigneeID: normalizeAssignee(assigneeID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create action item: %w", err)
	}

	log.Info().
		Str("board_id", boardID.String()).
		Str("note_id", noteID.String()).
		Str("action_item_id", item.ID.String()).
		Msg("note converted to action item")
	return item, nil
}

// ActionItemToIssue opens an issue for the action item and stores the issue
// id on it. Each call opens a new issue and the link points at the latest.
func (p *Pipeline) ActionItemToIssue(ctx context.Context, actionItemID, projectID uuid.UUID, reporterID string) (*models.ActionItem, error) {
	item, err := p.repo.GetActionItem(ctx, actionItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get action item: %w", err)
	}
	if p.issues == nil {
		return nil, ErrNoIssueTracker
	}

	issueID, err := p.issues.CreateIssue(ctx, IssueRequest{
		Title:      item.Text,
		Type:       defaultIssueType,
		Priority:   defaultIssuePriority,
		AssigneeID: item.AssigneeID,
		ReporterID: reporterID,
		ProjectID:  projectID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	updated, err := p.repo.UpdateActionItem(ctx, actionItemID, retro.UpdateActionItemParams{IssueID: &issueID})
	if err != nil {
		// The issue exists but the link is lost; surface the id so it can be found.
		log.Error().Err(err).
			Str("action_item_id", actionItemID.String()).
			Str("issue_id", issueID).
			Msg("issue created but action item link failed")
		return nil, fmt.Errorf("failed to link issue %s: %w", issueID, err)
	}

	log.Info().
		Str("board_id", item.BoardID.String()).
		Str("action_item_id", actionItemID.String()).
		Str("issue_id", issueID).
		Msg("action item converted to issue")
	return updated, nil
}

// UpdateActionItem edits an action item's text, assignee or completion flag.
func (p *Pipeline) UpdateActionItem(ctx context.Context, id uuid.UUID, req UpdateActionItemRequest) (*models.ActionItem, error) {
	params := retro.UpdateActionItemParams{IsDone: req.IsDone}
	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			return nil, retro.ValidationError("action item text cannot be empty")
		}
		if len([]rune(text)) > MaxTextLength {
			return nil, retro.ValidationError("action item text cannot exceed %d characters", MaxTextLength)
		}
		params.Text = &text
	}
	if req.AssigneeID != nil {
		assignee := strings.TrimSpace(*req.AssigneeID)
		params.AssigneeID = &assignee
	}

	item, err := p.repo.UpdateActionItem(ctx, id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update action item: %w", err)
	}
	return item, nil
}

// DeleteActionItem removes an action item and returns the board it was on.
func (p *Pipeline) DeleteActionItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	item, err := p.repo.GetActionItem(ctx, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get action item: %w", err)
	}
	if err := p.repo.DeleteActionItem(ctx, id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to delete action item: %w", err)
	}
	return item.BoardID, nil
}

// ListActionItems returns the board's action items in creation order.
func (p *Pipeline) ListActionItems(ctx context.Context, boardID uuid.UUID) ([]models.ActionItem, error) {
	if _, err := p.repo.GetBoard(ctx, boardID); err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	items, err := p.repo.ListActionItems(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list action items: %w", err)
	}
	return items, nil
}

// GetActionItem fetches a single action item.
func (p *Pipeline) GetActionItem(ctx context.Context, id uuid.UUID) (*models.ActionItem, error) {
	item, err := p.repo.GetActionItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get action item: %w", err)
	}
	return item, nil
}

func normalizeAssignee(assigneeID *string) *string {
	if assigneeID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*assigneeID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
