package timer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/memstore"
)

func setup(t *testing.T, durationSec int) (*Coordinator, *clockwork.FakeClock, *models.Board) {
	t.Helper()
	store := memstore.New()
	board, err := store.CreateBoard(context.Background(), retro.CreateBoardParams{
		ProjectID:        uuid.New(),
		Name:             "Retro",
		Template:         models.BoardTemplateFourLs,
		TimerDurationSec: durationSec,
		VoteLimit:        5,
		CreatedBy:        "u1",
	})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	return NewCoordinator(store, clock, nil), clock, board
}

func TestStartStopCycle(t *testing.T) {
	ctx := context.Background()
	c, clock, board := setup(t, 300)

	started, err := c.Start(ctx, board.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !started.Running || started.StartedAt == nil || !started.StartedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected state after start: %+v", started)
	}
	if started.DurationSec != 300 {
		t.Fatalf("expected duration 300, got %d", started.DurationSec)
	}

	// A second start keeps the original start time.
	clock.Advance(10 * time.Second)
	again, err := c.Start(ctx, board.ID)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !again.StartedAt.Equal(*started.StartedAt) {
		t.Fatalf("start time changed: %v -> %v", started.StartedAt, again.StartedAt)
	}
	if !again.ServerTime.Equal(clock.Now()) {
		t.Fatalf("expected server time %v, got %v", clock.Now(), again.ServerTime)
	}

	stopped, err := c.Stop(ctx, board.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Running || stopped.StartedAt != nil {
		t.Fatalf("unexpected state after stop: %+v", stopped)
	}

	stoppedAgain, err := c.Stop(ctx, board.ID)
	if err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if stoppedAgain.Running {
		t.Fatal("expected timer to stay stopped")
	}
}

func TestRemainingTracksElapsedTime(t *testing.T) {
	ctx := context.Background()
	c, clock, board := setup(t, 120)

	state, err := c.Start(ctx, board.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(45 * time.Second)
	if got := Remaining(*state, clock.Now()); got != 75*time.Second {
		t.Fatalf("expected 75s remaining, got %v", got)
	}

	// A client whose clock runs 3s behind the server corrects with the offset.
	clientNow := clock.Now().Add(-3 * time.Second)
	offset := ClockOffset(State{ServerTime: clock.Now()}, clientNow)
	if got := RemainingWithOffset(*state, clientNow, offset); got != 75*time.Second {
		t.Fatalf("expected 75s with offset, got %v", got)
	}

	// Expiry is never enforced by the server.
	clock.Advance(10 * time.Minute)
	if got := Remaining(*state, clock.Now()); got != 0 {
		t.Fatalf("expected remaining to floor at 0, got %v", got)
	}
	current, err := c.State(ctx, board.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !current.Running {
		t.Fatal("timer must keep running after expiry")
	}
}

func TestRemainingWhenStopped(t *testing.T) {
	s := State{Running: false, DurationSec: 60}
	if got := Remaining(s, time.Now()); got != time.Minute {
		t.Fatalf("expected full duration, got %v", got)
	}
}

func TestSetDuration(t *testing.T) {
	ctx := context.Background()
	c, _, board := setup(t, 300)

	state, err := c.SetDuration(ctx, board.ID, 90)
	if err != nil {
		t.Fatalf("set duration: %v", err)
	}
	if state.DurationSec != 90 {
		t.Fatalf("expected 90, got %d", state.DurationSec)
	}

	for _, bad := range []int{0, -5, MaxDurationSec + 1} {
		if _, err := c.SetDuration(ctx, board.ID, bad); !errors.Is(err, retro.ErrValidation) {
			t.Errorf("duration %d: expected validation error, got %v", bad, err)
		}
	}
}

func TestUnknownBoard(t *testing.T) {
	c, _, _ := setup(t, 300)
	if _, err := c.Start(context.Background(), uuid.New()); !errors.Is(err, retro.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
