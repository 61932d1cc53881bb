package votes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/lock"
	"github.com/mcdev12/retroboard/go/internal/retro/memstore"
	"github.com/redis/go-redis/v9"
)

type fixture struct {
	store *memstore.Store
	board *models.Board
	notes []*models.Note
}

func newFixture(t *testing.T, voteLimit, noteCount int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	board, err := store.CreateBoard(ctx, retro.CreateBoardParams{
		ProjectID:        uuid.New(),
		Name:             "Sprint 12",
		Template:         models.BoardTemplateStartStopContinue,
		TimerDurationSec: 300,
		VoteLimit:        voteLimit,
		IsAnonymous:      true,
		CreatedBy:        "facilitator",
		Columns:          []retro.NewColumn{{Name: "Start", Color: "#22c55e"}},
	})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	cols, err := store.ListColumns(ctx, board.ID)
	if err != nil || len(cols) != 1 {
		t.Fatalf("list columns: %v (%d)", err, len(cols))
	}

	f := &fixture{store: store, board: board}
	for i := 0; i < noteCount; i++ {
		note, err := store.CreateNote(ctx, retro.CreateNoteParams{
			ColumnID:    cols[0].ID,
			AuthorID:    "author",
			Text:        "note",
			Position:    i,
			IsAnonymous: true,
		})
		if err != nil {
			t.Fatalf("create note: %v", err)
		}
		f.notes = append(f.notes, note)
	}
	return f
}

func TestToggleEnforcesCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 3)
	ledger := NewLedger(f.store, nil)

	for i := 0; i < 2; i++ {
		res, err := ledger.Toggle(ctx, f.notes[i].ID, "alice")
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if !res.Voted || res.BoardID != f.board.ID {
			t.Fatalf("toggle %d: unexpected result %+v", i, res)
		}
	}

	_, err := ledger.Toggle(ctx, f.notes[2].ID, "alice")
	var limitErr *retro.LimitExceededError
	if !errors.As(err, &limitErr) || limitErr.Limit != 2 {
		t.Fatalf("expected limit exceeded with limit 2, got %v", err)
	}

	// Removing a vote frees a slot.
	res, err := ledger.Toggle(ctx, f.notes[0].ID, "alice")
	if err != nil || res.Voted {
		t.Fatalf("expected vote removal, got %+v, %v", res, err)
	}
	res, err = ledger.Toggle(ctx, f.notes[2].ID, "alice")
	if err != nil || !res.Voted {
		t.Fatalf("expected vote on third note, got %+v, %v", res, err)
	}

	// Other users have their own allowance.
	res, err = ledger.Toggle(ctx, f.notes[2].ID, "bob")
	if err != nil {
		t.Fatalf("bob toggle: %v", err)
	}
	if res.VoteCount != 2 {
		t.Fatalf("expected note total of 2 after bob's vote, got %d", res.VoteCount)
	}
	res, err = ledger.Toggle(ctx, f.notes[2].ID, "bob")
	if err != nil || res.Voted || res.VoteCount != 1 {
		t.Fatalf("expected bob's unvote to leave 1, got %+v, %v", res, err)
	}
	if _, err := ledger.Toggle(ctx, f.notes[2].ID, "bob"); err != nil {
		t.Fatalf("bob revote: %v", err)
	}

	used, limit, err := ledger.Tally(ctx, f.board.ID, "alice")
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if used != 2 || limit != 2 {
		t.Fatalf("expected 2/2, got %d/%d", used, limit)
	}
}

func TestToggleTwiceRestoresState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5, 1)
	ledger := NewLedger(f.store, nil)

	before, err := f.store.CountNoteVotes(ctx, f.board.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if _, err := ledger.Toggle(ctx, f.notes[0].ID, "alice"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if _, err := ledger.Toggle(ctx, f.notes[0].ID, "alice"); err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	after, err := f.store.CountNoteVotes(ctx, f.board.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if before[f.notes[0].ID] != after[f.notes[0].ID] {
		t.Fatalf("expected %d votes, got %d", before[f.notes[0].ID], after[f.notes[0].ID])
	}
}

func TestToggleMissingNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5, 1)
	ledger := NewLedger(f.store, nil)

	if err := f.store.DeleteNote(ctx, f.notes[0].ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	_, err := ledger.Toggle(ctx, f.notes[0].ID, "alice")
	if !errors.Is(err, retro.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if msg := retro.PublicMessage(err); msg != "note not found" {
		t.Fatalf("unexpected public message %q", msg)
	}
}

func TestConcurrentTogglesNeverExceedCap(t *testing.T) {
	ctx := context.Background()
	const limit = 3
	f := newFixture(t, limit, 10)
	ledger := NewLedger(f.store, lock.NewKeyedMutex())

	var wg sync.WaitGroup
	for _, note := range f.notes {
		wg.Add(1)
		go func(noteID uuid.UUID) {
			defer wg.Done()
			_, err := ledger.Toggle(ctx, noteID, "alice")
			if err != nil && !errors.Is(err, retro.ErrLimitExceeded) {
				t.Errorf("toggle: %v", err)
			}
		}(note.ID)
	}
	wg.Wait()

	used, err := f.store.CountUserVotes(ctx, f.board.ID, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if used != limit {
		t.Fatalf("expected exactly %d votes, got %d", limit, used)
	}
}

func TestLockKey(t *testing.T) {
	board := uuid.MustParse("6f1c1f36-58d5-4b57-9c56-6d8f1ef0a0c1")
	if got := LockKey(board, "u1"); got != "votes:6f1c1f36-58d5-4b57-9c56-6d8f1ef0a0c1:u1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestLedgerWithRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newFixture(t, 1, 2)
	ledger := NewLedger(f.store, lock.NewRedisLocker(client, lock.DefaultRedisLockerConfig()))
	ctx := context.Background()

	if _, err := ledger.Toggle(ctx, f.notes[0].ID, "alice"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := ledger.Toggle(ctx, f.notes[1].ID, "alice"); !errors.Is(err, retro.ErrLimitExceeded) {
		t.Fatalf("expected limit exceeded, got %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected locks to be released, found %v", keys)
	}
}
