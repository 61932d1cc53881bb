// Package votes toggles votes on notes while holding each user to the
// board's vote cap.
package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/lock"
	"github.com/rs/zerolog/log"
)

// Repository defines what the ledger needs from storage.
type Repository interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error)
	GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error)
	GetVote(ctx context.Context, noteID uuid.UUID, userID string) (*models.Vote, error)
	CreateVote(ctx context.Context, noteID uuid.UUID, userID string) (*models.Vote, error)
	DeleteVote(ctx context.Context, noteID uuid.UUID, userID string) error
	CountUserVotes(ctx context.Context, boardID uuid.UUID, userID string) (int, error)
	CountNoteVotes(ctx context.Context, boardID uuid.UUID) (map[uuid.UUID]int, error)
}

// Result is the outcome of a toggle. VoteCount is the note's total after the
// toggle, so clients can set it rather than adjust a local count.
type Result struct {
	BoardID   uuid.UUID `json:"board_id"`
	NoteID    uuid.UUID `json:"note_id"`
	UserID    string    `json:"user_id"`
	Voted     bool      `json:"voted"`
	VoteCount int       `json:"vote_count"`
}

// Ledger enforces the per-user, per-board vote cap.
type Ledger struct {
	repo   Repository
	locker lock.Locker
}

// NewLedger creates a ledger. A nil locker falls back to an in-process
// lock.KeyedMutex.
func NewLedger(repo Repository, locker lock.Locker) *Ledger {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Ledger{repo: repo, locker: locker}
}

// LockKey is the serialisation key for one user's votes on one board.
func LockKey(boardID uuid.UUID, userID string) string {
	return fmt.Sprintf("votes:%s:%s", boardID, userID)
}

// Toggle removes the user's vote on the note if present, otherwise casts one
// if the user is still under the board's cap. The cap check and the insert run
// under a per-(board, user) lock.
func (l *Ledger) Toggle(ctx context.Context, noteID uuid.UUID, userID string) (*Result, error) {
	board, err := l.boardForNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	unlock, err := l.locker.Lock(ctx, LockKey(board.ID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to serialise vote toggle: %w", err)
	}
	defer unlock()

	result := &Result{BoardID: board.ID, NoteID: noteID, UserID: userID}

	_, err = l.repo.GetVote(ctx, noteID, userID)
	switch {
	case err == nil:
		if err := l.repo.DeleteVote(ctx, noteID, userID); err != nil && !errors.Is(err, retro.ErrNotFound) {
			return nil, fmt.Errorf("failed to remove vote: %w", err)
		}
		result.Voted = false
		if result.VoteCount, err = l.noteVotes(ctx, board.ID, noteID); err != nil {
			return nil, err
		}
		log.Debug().
			Str("board_id", board.ID.String()).
			Str("note_id", noteID.String()).
			Str("user_id", userID).
			Msg("vote removed")
		return result, nil
	case !errors.Is(err, retro.ErrNotFound):
		return nil, fmt.Errorf("failed to read vote: %w", err)
	}

	used, err := l.repo.CountUserVotes(ctx, board.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	if used >= board.VoteLimit {
		return nil, &retro.LimitExceededError{Limit: board.VoteLimit}
	}

	if _, err := l.repo.CreateVote(ctx, noteID, userID); err != nil {
		return nil, fmt.Errorf("failed to cast vote: %w", err)
	}
	result.Voted = true
	if result.VoteCount, err = l.noteVotes(ctx, board.ID, noteID); err != nil {
		return nil, err
	}

	log.Debug().
		Str("board_id", board.ID.String()).
		Str("note_id", noteID.String()).
		Str("user_id", userID).
		Int("used", used+1).
		Int("limit", board.VoteLimit).
		Msg("vote cast")
	return result, nil
}

// Tally returns how many votes the user has cast on the board and the cap.
func (l *Ledger) Tally(ctx context.Context, boardID uuid.UUID, userID string) (used, limit int, err error) {
	board, err := l.repo.GetBoard(ctx, boardID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get board: %w", err)
	}
	used, err = l.repo.CountUserVotes(ctx, boardID, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return used, board.VoteLimit, nil
}

func (l *Ledger) noteVotes(ctx context.Context, boardID, noteID uuid.UUID) (int, error) {
	counts, err := l.repo.CountNoteVotes(ctx, boardID)
	if err != nil {
		return 0, fmt.Errorf("failed to count note votes: %w", err)
	}
	return counts[noteID], nil
}

func (l *Ledger) boardForNote(ctx context.Context, noteID uuid.UUID) (*models.Board, error) {
	note, err := l.repo.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	col, err := l.repo.GetColumn(ctx, note.ColumnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	board, err := l.repo.GetBoard(ctx, col.BoardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return board, nil
}
