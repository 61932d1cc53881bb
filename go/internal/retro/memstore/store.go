// Package memstore is an in-process implementation of the retro storage
// collaborator. It backs tests and single-node development runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
)

type voteKey struct {
	noteID uuid.UUID
	userID string
}

// Store keeps every entity in maps guarded by a single mutex.
type Store struct {
	mu          sync.RWMutex
	boards      map[uuid.UUID]models.Board
	columns     map[uuid.UUID]models.Column
	notes       map[uuid.UUID]models.Note
	votes       map[voteKey]models.Vote
	actionItems map[uuid.UUID]models.ActionItem
	lastTime    time.Time
}

var _ retro.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		boards:      make(map[uuid.UUID]models.Board),
		columns:     make(map[uuid.UUID]models.Column),
		notes:       make(map[uuid.UUID]models.Note),
		votes:       make(map[voteKey]models.Vote),
		actionItems: make(map[uuid.UUID]models.ActionItem),
	}
}

// now returns a strictly increasing timestamp so creation order is total.
// Callers must hold the write lock.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = t
	return t
}

func (s *Store) CreateBoard(ctx context.Context, params retro.CreateBoardParams) (*models.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	board := models.Board{
		ID:               uuid.New(),
		ProjectID:        params.ProjectID,
		Name:             params.Name,
		Template:         params.Template,
		TimerDurationSec: params.TimerDurationSec,
		VoteLimit:        params.VoteLimit,
		IsAnonymous:      params.IsAnonymous,
		CreatedBy:        params.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.boards[board.ID] = board

	for i, col := range params.Columns {
		c := models.Column{
			ID:        uuid.New(),
			BoardID:   board.ID,
			Name:      col.Name,
			Position:  i,
			Color:     col.Color,
			CreatedAt: s.now(),
		}
		s.columns[c.ID] = c
	}
	return &board, nil
}

func (s *Store) GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	board, ok := s.boards[id]
	if !ok {
		return nil, retro.NotFoundError("board")
	}
	return &board, nil
}

func (s *Store) UpdateBoard(ctx context.Context, id uuid.UUID, params retro.UpdateBoardParams) (*models.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[id]
	if !ok {
		return nil, retro.NotFoundError("board")
	}
	if params.Name != nil {
		board.Name = *params.Name
	}
	if params.TimerDurationSec != nil {
		board.TimerDurationSec = *params.TimerDurationSec
	}
	if params.VoteLimit != nil {
		board.VoteLimit = *params.VoteLimit
	}
	if params.IsAnonymous != nil {
		board.IsAnonymous = *params.IsAnonymous
	}
	board.UpdatedAt = s.now()
	s.boards[id] = board
	return &board, nil
}

func (s *Store) SetBoardTimer(ctx context.Context, id uuid.UUID, running bool, startedAt *time.Time) (*models.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[id]
	if !ok {
		return nil, retro.NotFoundError("board")
	}
	board.TimerRunning = running
	board.TimerStartedAt = nil
	if startedAt != nil {
		t := *startedAt
		board.TimerStartedAt = &t
	}
	board.UpdatedAt = s.now()
	s.boards[id] = board
	return &board, nil
}

func (s *Store) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[id]; !ok {
		return retro.NotFoundError("board")
	}
	delete(s.boards, id)
	for colID, col := range s.columns {
		if col.BoardID != id {
			continue
		}
		for noteID, note := range s.notes {
			if note.ColumnID == colID {
				s.deleteNoteLocked(noteID)
			}
		}
		delete(s.columns, colID)
	}
	for itemID, item := range s.actionItems {
		if item.BoardID == id {
			delete(s.actionItems, itemID)
		}
	}
	return nil
}

func (s *Store) CreateColumn(ctx context.Context, params retro.CreateColumnParams) (*models.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[params.BoardID]; !ok {
		return nil, retro.NotFoundError("board")
	}
	col := models.Column{
		ID:        uuid.New(),
		BoardID:   params.BoardID,
		Name:      params.Name,
		Position:  params.Position,
		Color:     params.Color,
		CreatedAt: s.now(),
	}
	s.columns[col.ID] = col
	return &col, nil
}

func (s *Store) GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.columns[id]
	if !ok {
		return nil, retro.NotFoundError("column")
	}
	return &col, nil
}

func (s *Store) ListColumns(ctx context.Context, boardID uuid.UUID) ([]models.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cols []models.Column
	for _, col := range s.columns {
		if col.BoardID == boardID {
			cols = append(cols, col)
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Position != cols[j].Position {
			return cols[i].Position < cols[j].Position
		}
		return cols[i].CreatedAt.Before(cols[j].CreatedAt)
	})
	return cols, nil
}

func (s *Store) CreateNote(ctx context.Context, params retro.CreateNoteParams) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.columns[params.ColumnID]; !ok {
		return nil, retro.NotFoundError("column")
	}
	now := s.now()
	note := models.Note{
		ID:          uuid.New(),
		ColumnID:    params.ColumnID,
		AuthorID:    params.AuthorID,
		Text:        params.Text,
		Color:       params.Color,
		Position:    params.Position,
		IsAnonymous: params.IsAnonymous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.notes[note.ID] = note
	return &note, nil
}

func (s *Store) GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok {
		return nil, retro.NotFoundError("note")
	}
	return &note, nil
}

func (s *Store) UpdateNote(ctx context.Context, id uuid.UUID, params retro.UpdateNoteParams) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return nil, retro.NotFoundError("note")
	}
	if params.ColumnID != nil {
		if _, ok := s.columns[*params.ColumnID]; !ok {
			return nil, retro.NotFoundError("column")
		}
		note.ColumnID = *params.ColumnID
	}
	if params.Text != nil {
		note.Text = *params.Text
	}
	if params.Position != nil {
		note.Position = *params.Position
	}
	note.UpdatedAt = s.now()
	s.notes[id] = note
	return &note, nil
}

func (s *Store) DeleteNote(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[id]; !ok {
		return retro.NotFoundError("note")
	}
	s.deleteNoteLocked(id)
	return nil
}

func (s *Store) deleteNoteLocked(id uuid.UUID) {
	delete(s.notes, id)
	for key := range s.votes {
		if key.noteID == id {
			delete(s.votes, key)
		}
	}
}

func (s *Store) ListNotes(ctx context.Context, boardID uuid.UUID) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var notes []models.Note
	for _, note := range s.notes {
		if col, ok := s.columns[note.ColumnID]; ok && col.BoardID == boardID {
			notes = append(notes, note)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		a, b := s.columns[notes[i].ColumnID], s.columns[notes[j].ColumnID]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.ID != b.ID {
			return a.ID.String() < b.ID.String()
		}
		return models.NoteLess(notes[i], notes[j])
	})
	return notes, nil
}

func (s *Store) MaxNotePosition(ctx context.Context, columnID uuid.UUID) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	highest, found := 0, false
	for _, note := range s.notes {
		if note.ColumnID != columnID {
			continue
		}
		if !found || note.Position > highest {
			highest = note.Position
			found = true
		}
	}
	return highest, found, nil
}

func (s *Store) GetVote(ctx context.Context, noteID uuid.UUID, userID string) (*models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vote, ok := s.votes[voteKey{noteID, userID}]
	if !ok {
		return nil, retro.NotFoundError("vote")
	}
	return &vote, nil
}

func (s *Store) CreateVote(ctx context.Context, noteID uuid.UUID, userID string) (*models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[noteID]; !ok {
		return nil, retro.NotFoundError("note")
	}
	key := voteKey{noteID, userID}
	if existing, ok := s.votes[key]; ok {
		return &existing, nil
	}
	vote := models.Vote{NoteID: noteID, UserID: userID, CreatedAt: s.now()}
	s.votes[key] = vote
	return &vote, nil
}

func (s *Store) DeleteVote(ctx context.Context, noteID uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey{noteID, userID}
	if _, ok := s.votes[key]; !ok {
		return retro.NotFoundError("vote")
	}
	delete(s.votes, key)
	return nil
}

func (s *Store) CountUserVotes(ctx context.Context, boardID uuid.UUID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for key := range s.votes {
		if key.userID != userID {
			continue
		}
		if s.noteBoardLocked(key.noteID) == boardID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountNoteVotes(ctx context.Context, boardID uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[uuid.UUID]int)
	for key := range s.votes {
		if s.noteBoardLocked(key.noteID) == boardID {
			counts[key.noteID]++
		}
	}
	return counts, nil
}

func (s *Store) noteBoardLocked(noteID uuid.UUID) uuid.UUID {
	note, ok := s.notes[noteID]
	if !ok {
		return uuid.Nil
	}
	return s.columns[note.ColumnID].BoardID
}

func (s *Store) CreateActionItem(ctx context.Context, params retro.CreateActionItemParams) (*models.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[params.BoardID]; !ok {
		return nil, retro.NotFoundError("board")
	}
	now := s.now()
	item := models.ActionItem{
		ID:         uuid.New(),
		BoardID:    params.BoardID,
		NoteID:     params.NoteID,
		Text:       params.Text,
		AssigneeID: params.AssigneeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.actionItems[item.ID] = item
	return &item, nil
}

func (s *Store) GetActionItem(ctx context.Context, id uuid.UUID) (*models.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.actionItems[id]
	if !ok {
		return nil, retro.NotFoundError("action item")
	}
	return &item, nil
}

func (s *Store) UpdateActionItem(ctx context.Context, id uuid.UUID, params retro.UpdateActionItemParams) (*models.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.actionItems[id]
	if !ok {
		return nil, retro.NotFoundError("action item")
	}
	if params.Text != nil {
		item.Text = *params.Text
	}
	if params.AssigneeID != nil {
		item.AssigneeID = params.AssigneeID
		if *params.AssigneeID == "" {
			item.AssigneeID = nil
		}
	}
	if params.IssueID != nil {
		item.IssueID = params.IssueID
	}
	if params.IsDone != nil {
		item.IsDone = *params.IsDone
	}
	item.UpdatedAt = s.now()
	s.actionItems[id] = item
	return &item, nil
}

func (s *Store) DeleteActionItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actionItems[id]; !ok {
		return retro.NotFoundError("action item")
	}
	delete(s.actionItems, id)
	return nil
}

func (s *Store) ListActionItems(ctx context.Context, boardID uuid.UUID) ([]models.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.ActionItem
	for _, item := range s.actionItems {
		if item.BoardID == boardID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}
