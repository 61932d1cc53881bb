// Package timer runs each board's shared countdown. The server only records
// when the countdown started; clients derive the remaining time themselves,
// so there is no per-board ticker and the server never stops a timer on its
// own.
package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/lock"
	"github.com/rs/zerolog/log"
)

// MaxDurationSec caps a countdown at one day.
const MaxDurationSec = 24 * 60 * 60

// Repository defines what the coordinator needs from storage
type Repository interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	UpdateBoard(ctx context.Context, id uuid.UUID, params retro.UpdateBoardParams) (*models.Board, error)
	SetBoardTimer(ctx context.Context, id uuid.UUID, running bool, startedAt *time.Time) (*models.Board, error)
}

// State is the authoritative timer state broadcast to a room. ServerTime
// lets clients estimate their clock offset.
type State struct {
	BoardID     uuid.UUID  `json:"board_id"`
	Running     bool       `json:"running"`
	StartedAt   *time.Time `json:"started_at"`
	DurationSec int        `json:"duration_sec"`
	ServerTime  time.Time  `json:"server_time"`
}

// Coordinator moves boards between Stopped and Running.
type Coordinator struct {
	repo   Repository
	clock  clockwork.Clock
	locker lock.Locker
}

// NewCoordinator creates a Coordinator. In production pass
// clockwork.NewRealClock(); tests use a fake clock.
func NewCoordinator(repo Repository, clock clockwork.Clock, locker lock.Locker) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Coordinator{repo: repo, clock: clock, locker: locker}
}

// Start records the current server time as the start of the countdown. If the
// timer is already running the stored state is returned unchanged.
func (c *Coordinator) Start(ctx context.Context, boardID uuid.UUID) (*State, error) {
	unlock, err := c.locker.Lock(ctx, lockKey(boardID))
	if err != nil {
		return nil, fmt.Errorf("failed to serialise timer start: %w", err)
	}
	defer unlock()

	board, err := c.repo.GetBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	if board.TimerRunning {
		return c.stateOf(board), nil
	}

	// Storage keeps microseconds; truncate so the broadcast matches a later read.
	startedAt := c.clock.Now().UTC().Truncate(time.Microsecond)
	board, err = c.repo.SetBoardTimer(ctx, boardID, true, &startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start timer: %w", err)
	}

	log.Info().
		Str("board_id", boardID.String()).
		Time("started_at", startedAt).
		Int("duration_sec", board.TimerDurationSec).
		Msg("timer started")
	return c.stateOf(board), nil
}

// Stop clears the countdown. Stopping a stopped timer returns its state.
func (c *Coordinator) Stop(ctx context.Context, boardID uuid.UUID) (*State, error) {
	unlock, err := c.locker.Lock(ctx, lockKey(boardID))
	if err != nil {
		return nil, fmt.Errorf("failed to serialise timer stop: %w", err)
	}
	defer unlock()

	board, err := c.repo.GetBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	if !board.TimerRunning {
		return c.stateOf(board), nil
	}

	board, err = c.repo.SetBoardTimer(ctx, boardID, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to stop timer: %w", err)
	}

	log.Info().Str("board_id", boardID.String()).Msg("timer stopped")
	return c.stateOf(board), nil
}

// SetDuration replaces the countdown length. A running timer keeps its start
// time, so clients recompute against the new duration.
func (c *Coordinator) SetDuration(ctx context.Context, boardID uuid.UUID, seconds int) (*State, error) {
	if seconds <= 0 || seconds > MaxDurationSec {
		return nil, retro.ValidationError("timer duration must be between 1 and %d seconds", MaxDurationSec)
	}

	unlock, err := c.locker.Lock(ctx, lockKey(boardID))
	if err != nil {
		return nil, fmt.Errorf("failed to serialise timer update: %w", err)
	}
	defer unlock()

	board, err := c.repo.UpdateBoard(ctx, boardID, retro.UpdateBoardParams{TimerDurationSec: &seconds})
	if err != nil {
		return nil, fmt.Errorf("failed to update timer duration: %w", err)
	}
	return c.stateOf(board), nil
}

// State reads the current timer state.
func (c *Coordinator) State(ctx context.Context, boardID uuid.UUID) (*State, error) {
	board, err := c.repo.GetBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return c.stateOf(board), nil
}

func (c *Coordinator) stateOf(board *models.Board) *State {
	return StateOf(board, c.clock.Now())
}

// StateOf builds the timer state of a board as seen at serverTime.
func StateOf(board *models.Board, serverTime time.Time) *State {
	s := &State{
		BoardID:     board.ID,
		Running:     board.TimerRunning,
		DurationSec: board.TimerDurationSec,
		ServerTime:  serverTime.UTC(),
	}
	if board.TimerRunning && board.TimerStartedAt != nil {
		t := board.TimerStartedAt.UTC()
		s.StartedAt = &t
	}
	return s
}

// Remaining computes max(0, duration - (now - startedAt)). A stopped timer
// reports its full duration.
func Remaining(s State, now time.Time) time.Duration {
	duration := time.Duration(s.DurationSec) * time.Second
	if !s.Running || s.StartedAt == nil {
		return duration
	}
	remaining := duration - now.Sub(*s.StartedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingWithOffset is Remaining for a client whose clock differs from the
// server's by offset (server minus client).
func RemainingWithOffset(s State, clientNow time.Time, offset time.Duration) time.Duration {
	return Remaining(s, clientNow.Add(offset))
}

// ClockOffset estimates server minus client time from a state received at
// clientReceivedAt.
func ClockOffset(s State, clientReceivedAt time.Time) time.Duration {
	return s.ServerTime.Sub(clientReceivedAt)
}

func lockKey(boardID uuid.UUID) string {
	return "timer:" + boardID.String()
}
