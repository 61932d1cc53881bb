package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro/boards"
	"github.com/mcdev12/retroboard/go/internal/retro/conversion"
	"github.com/mcdev12/retroboard/go/internal/retro/memstore"
	"github.com/mcdev12/retroboard/go/internal/retro/notes"
	"github.com/mcdev12/retroboard/go/internal/retro/registry"
	"github.com/mcdev12/retroboard/go/internal/retro/timer"
	"github.com/mcdev12/retroboard/go/internal/retro/votes"
)

type fakePeer struct {
	id       string
	identity models.Identity

	mu       sync.Mutex
	received []Event
}

func newFakePeer(userID string) *fakePeer {
	return &fakePeer{
		id:       uuid.NewString(),
		identity: models.Identity{UserID: userID, DisplayName: "User " + userID},
	}
}

func (p *fakePeer) ID() string                { return p.id }
func (p *fakePeer) Identity() models.Identity { return p.identity }

func (p *fakePeer) Send(payload []byte) bool {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.received = append(p.received, ev)
	p.mu.Unlock()
	return true
}

func (p *fakePeer) events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.received...)
}

func (p *fakePeer) types() []EventType {
	var out []EventType
	for _, ev := range p.events() {
		out = append(out, ev.Type)
	}
	return out
}

func (p *fakePeer) last(t *testing.T) Event {
	t.Helper()
	evs := p.events()
	if len(evs) == 0 {
		t.Fatalf("peer %s received nothing", p.identity.UserID)
	}
	return evs[len(evs)-1]
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	p.received = nil
	p.mu.Unlock()
}

// snapshotFails lets a join get as far as reading board state.
type snapshotFails struct {
	BoardsApp
}

func (snapshotFails) Snapshot(ctx context.Context, boardID uuid.UUID) (*boards.Snapshot, error) {
	return nil, errors.New("connection reset by peer")
}

type stubIssues struct {
	requests []conversion.IssueRequest
}

func (s *stubIssues) CreateIssue(ctx context.Context, req conversion.IssueRequest) (string, error) {
	s.requests = append(s.requests, req)
	return "ISSUE-42", nil
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *memstore.Store
	clock    *clockwork.FakeClock
	registry *registry.Registry
	issues   *stubIssues
	boards   *boards.App
	deps     DispatcherDeps
	d        *Dispatcher
	board    *models.Board
	columns  []models.Column
}

func newHarness(t *testing.T, voteLimit int) *harness {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	reg := registry.New()
	issues := &stubIssues{}

	catalog, err := boards.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	boardsApp := boards.NewApp(store, catalog, clock)
	board, err := boardsApp.Create(ctx, boards.CreateBoardRequest{
		ProjectID: uuid.New(),
		Name:      "Sprint 12",
		VoteLimit: &voteLimit,
		CreatedBy: "owner",
	})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	columns, err := store.ListColumns(ctx, board.ID)
	if err != nil {
		t.Fatalf("list columns: %v", err)
	}

	deps := DispatcherDeps{
		Registry:   reg,
		Fanout:     NewLocalFanout(reg),
		Clock:      clock,
		Boards:     boardsApp,
		Notes:      notes.NewApp(store),
		Votes:      votes.NewLedger(store, nil),
		Timer:      timer.NewCoordinator(store, clock, nil),
		Conversion: conversion.NewPipeline(store, issues),
	}

	return &harness{
		t: t, ctx: ctx, store: store, clock: clock, registry: reg,
		issues: issues, boards: boardsApp, deps: deps, d: NewDispatcher(deps),
		board: board, columns: columns,
	}
}

func (h *harness) send(p *fakePeer, eventType EventType, boardID *uuid.UUID, data any) {
	h.t.Helper()
	in := Inbound{Type: eventType, RequestID: "req-" + string(eventType), BoardID: boardID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			h.t.Fatalf("marshal %s: %v", eventType, err)
		}
		in.Data = raw
	}
	h.d.Dispatch(h.ctx, NewSession(p, h.clock.Now()), in)
}

func (h *harness) join(p *fakePeer) {
	h.t.Helper()
	h.joinBoard(p, h.board.ID)
}

func (h *harness) joinBoard(p *fakePeer, boardID uuid.UUID) {
	h.t.Helper()
	h.send(p, EventJoin, &boardID, nil)
	if got := p.last(h.t).Type; got != EventBoardState {
		h.t.Fatalf("expected board.state after join, got %s", got)
	}
}

func (h *harness) createNote(p *fakePeer, text string) models.Note {
	h.t.Helper()
	h.send(p, EventNoteCreate, nil, NoteCreateData{ColumnID: h.columns[0].ID, Text: text})
	ev := p.last(h.t)
	if ev.Type != EventNoteCreated {
		h.t.Fatalf("expected note.created, got %s: %s", ev.Type, ev.Data)
	}
	var note models.Note
	if err := json.Unmarshal(ev.Data, &note); err != nil {
		h.t.Fatalf("decode note: %v", err)
	}
	return note
}

func errorOf(t *testing.T, ev Event) ErrorPayload {
	t.Helper()
	if ev.Type != EventError {
		t.Fatalf("expected error event, got %s", ev.Type)
	}
	var payload ErrorPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload
}

func TestJoinSendsStateAndAnnouncesToOthers(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")

	h.join(alice)
	h.join(bob)

	var state struct {
		Board     models.Board      `json:"board"`
		Columns   []models.Column   `json:"columns"`
		Members   []models.Identity `json:"members"`
		VotesUsed int               `json:"votes_used"`
		VoteLimit int               `json:"vote_limit"`
	}
	if err := json.Unmarshal(bob.last(t).Data, &state); err != nil {
		t.Fatalf("decode board.state: %v", err)
	}
	if state.Board.ID != h.board.ID || len(state.Columns) != 3 {
		t.Fatalf("unexpected snapshot: %+v", state)
	}
	if len(state.Members) != 2 || state.VoteLimit != 3 || state.VotesUsed != 0 {
		t.Fatalf("unexpected presence or vote info: %+v", state)
	}

	aliceTypes := alice.types()
	if len(aliceTypes) != 2 || aliceTypes[1] != EventUserJoined {
		t.Fatalf("alice should see bob join, got %v", aliceTypes)
	}
	for _, typ := range bob.types() {
		if typ == EventUserJoined {
			t.Fatal("a joining connection is not told about itself")
		}
	}
}

func TestJoinTwiceDoesNotAnnounceAgain(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)
	alice.reset()

	h.join(bob)
	if got := alice.types(); len(got) != 0 {
		t.Fatalf("rejoin should be silent for the room, got %v", got)
	}
}

func TestJoinUnknownBoard(t *testing.T) {
	h := newHarness(t, 3)
	alice := newFakePeer("alice")
	missing := uuid.New()

	h.send(alice, EventJoin, &missing, nil)
	ev := alice.last(t)
	if payload := errorOf(t, ev); payload.Code != "not_found" {
		t.Fatalf("expected not_found, got %+v", payload)
	}
	if ev.RequestID != "req-join" {
		t.Fatalf("error must echo request id, got %q", ev.RequestID)
	}
	if h.registry.IsMember(alice, missing) {
		t.Fatal("failed join must not create a room")
	}
}

func TestBoardEventsRequireMembership(t *testing.T) {
	h := newHarness(t, 3)
	alice, mallory := newFakePeer("alice"), newFakePeer("mallory")
	h.join(alice)
	note := h.createNote(alice, "ship it")
	alice.reset()

	cases := []struct {
		name      string
		eventType EventType
		boardID   *uuid.UUID
		data      any
	}{
		{"note.create", EventNoteCreate, nil, NoteCreateData{ColumnID: h.columns[0].ID, Text: "sneaky"}},
		{"note.delete", EventNoteDelete, nil, NoteRefData{NoteID: note.ID}},
		{"vote.toggle", EventVoteToggle, nil, NoteRefData{NoteID: note.ID}},
		{"timer.start", EventTimerStart, &h.board.ID, nil},
		{"cursor.move", EventCursorMove, &h.board.ID, CursorMoveData{X: 1, Y: 2}},
		{"action.create", EventActionCreate, &h.board.ID, ActionCreateData{NoteID: note.ID}},
		{"timer.sync", EventTimerSync, &h.board.ID, nil},
		{"column.create", EventColumnCreate, &h.board.ID, ColumnCreateData{Name: "Kudos"}},
		{"board.delete", EventBoardDelete, &h.board.ID, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mallory.reset()
			h.send(mallory, tc.eventType, tc.boardID, tc.data)
			if payload := errorOf(t, mallory.last(t)); payload.Code != "unauthorized" {
				t.Fatalf("expected unauthorized, got %+v", payload)
			}
		})
	}

	if got := alice.types(); len(got) != 0 {
		t.Fatalf("room must not see rejected events, got %v", got)
	}
	if _, err := h.store.GetNote(h.ctx, note.ID); err != nil {
		t.Fatalf("note should survive rejected delete: %v", err)
	}
}

func TestNoteCreateReachesWholeRoomOnly(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	outsider := newFakePeer("carol")
	h.join(alice)
	h.join(bob)

	other := newHarness(t, 3)
	h.registry.Join(outsider, other.board.ID)
	alice.reset()
	bob.reset()

	note := h.createNote(alice, "  retro notes  ")
	if note.Text != "retro notes" || note.AuthorID != "alice" {
		t.Fatalf("unexpected note: %+v", note)
	}

	ev := bob.last(t)
	if ev.Type != EventNoteCreated || ev.BoardID != h.board.ID.String() || ev.RequestID != "req-note.create" {
		t.Fatalf("unexpected event for bob: %+v", ev)
	}
	if got := outsider.types(); len(got) != 0 {
		t.Fatalf("other rooms must not receive events, got %v", got)
	}
}

func TestInvalidNoteGoesToSenderOnly(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)
	bob.reset()

	h.send(alice, EventNoteCreate, nil, NoteCreateData{ColumnID: h.columns[0].ID, Text: "   "})
	if payload := errorOf(t, alice.last(t)); payload.Code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %+v", payload)
	}
	if got := bob.types(); len(got) != 0 {
		t.Fatalf("errors are never broadcast, got %v", got)
	}
}

func TestNoteMoveAndDelete(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)
	note := h.createNote(alice, "move me")

	pos := 0
	h.send(bob, EventNoteMove, nil, NoteMoveData{NoteID: note.ID, ColumnID: h.columns[2].ID, Position: &pos})
	ev := alice.last(t)
	if ev.Type != EventNoteMoved {
		t.Fatalf("expected note.moved, got %s", ev.Type)
	}
	var moved models.Note
	if err := json.Unmarshal(ev.Data, &moved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if moved.ColumnID != h.columns[2].ID {
		t.Fatalf("note not moved: %+v", moved)
	}

	h.send(bob, EventNoteDelete, nil, NoteRefData{NoteID: note.ID})
	ev = alice.last(t)
	var deleted NoteDeletedPayload
	if err := json.Unmarshal(ev.Data, &deleted); err != nil || ev.Type != EventNoteDeleted || deleted.NoteID != note.ID {
		t.Fatalf("unexpected delete event %+v (%v)", ev, err)
	}
}

func TestNoteMoveRequiresPosition(t *testing.T) {
	h := newHarness(t, 3)
	alice := newFakePeer("alice")
	h.join(alice)
	note := h.createNote(alice, "stay")

	h.send(alice, EventNoteMove, nil, NoteMoveData{NoteID: note.ID, ColumnID: h.columns[1].ID})
	if payload := errorOf(t, alice.last(t)); payload.Code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %+v", payload)
	}
}

func TestVoteLimitRejectionIsPrivate(t *testing.T) {
	h := newHarness(t, 1)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)
	first := h.createNote(alice, "first")
	second := h.createNote(alice, "second")
	bob.reset()

	h.send(alice, EventVoteToggle, nil, NoteRefData{NoteID: first.ID})
	ev := bob.last(t)
	var res votes.Result
	if err := json.Unmarshal(ev.Data, &res); err != nil || ev.Type != EventVoteToggled {
		t.Fatalf("unexpected vote event %+v (%v)", ev, err)
	}
	if !res.Voted || res.UserID != "alice" || res.NoteID != first.ID || res.VoteCount != 1 {
		t.Fatalf("unexpected vote result %+v", res)
	}

	h.send(alice, EventVoteToggle, nil, NoteRefData{NoteID: second.ID})
	payload := errorOf(t, alice.last(t))
	if payload.Code != "limit_exceeded" {
		t.Fatalf("expected limit_exceeded, got %+v", payload)
	}
	if got := bob.types(); len(got) != 1 {
		t.Fatalf("bob should only see the accepted vote, got %v", got)
	}
	if got := alice.types(); got[len(got)-2] != EventVoteToggled || got[len(got)-1] != EventError {
		t.Fatalf("alice should see her vote before the rejection, got %v", got)
	}
	if n, _ := h.store.CountUserVotes(h.ctx, h.board.ID, "alice"); n != 1 {
		t.Fatalf("expected 1 stored vote, got %d", n)
	}
}

func TestCursorMoveExcludesSender(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)
	alice.reset()
	bob.reset()

	h.send(alice, EventCursorMove, &h.board.ID, CursorMoveData{X: 10.5, Y: 20})
	if got := alice.types(); len(got) != 0 {
		t.Fatalf("sender must not get its own cursor, got %v", got)
	}
	var cursor CursorMovedPayload
	ev := bob.last(t)
	if err := json.Unmarshal(ev.Data, &cursor); err != nil || ev.Type != EventCursorMoved {
		t.Fatalf("unexpected cursor event %+v (%v)", ev, err)
	}
	if cursor.UserID != "alice" || cursor.X != 10.5 || cursor.Y != 20 {
		t.Fatalf("unexpected cursor payload %+v", cursor)
	}
}

func TestTimerEventsCarryServerTime(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)

	h.send(alice, EventTimerSetDuration, &h.board.ID, TimerDurationData{DurationSec: 120})
	if ev := bob.last(t); ev.Type != EventTimerUpdated {
		t.Fatalf("expected timer.updated, got %s", ev.Type)
	}

	h.send(alice, EventTimerStart, &h.board.ID, nil)
	ev := bob.last(t)
	var state timer.State
	if err := json.Unmarshal(ev.Data, &state); err != nil || ev.Type != EventTimerStarted {
		t.Fatalf("unexpected timer event %+v (%v)", ev, err)
	}
	if !state.Running || state.DurationSec != 120 || !state.ServerTime.Equal(h.clock.Now()) {
		t.Fatalf("unexpected timer state %+v", state)
	}

	h.clock.Advance(30 * time.Second)
	h.send(bob, EventTimerStop, &h.board.ID, nil)
	if ev := alice.last(t); ev.Type != EventTimerStopped {
		t.Fatalf("expected timer.stopped, got %s", ev.Type)
	}
}

func TestActionItemFlow(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)
	note := h.createNote(alice, "fix flaky deploys")

	assignee := "bob"
	h.send(alice, EventActionCreate, &h.board.ID, ActionCreateData{NoteID: note.ID, AssigneeID: &assignee})
	ev := bob.last(t)
	var item models.ActionItem
	if err := json.Unmarshal(ev.Data, &item); err != nil || ev.Type != EventActionCreated {
		t.Fatalf("unexpected action event %+v (%v)", ev, err)
	}
	if item.Text != note.Text || item.AssigneeID == nil || *item.AssigneeID != "bob" {
		t.Fatalf("unexpected action item %+v", item)
	}

	h.send(bob, EventActionToIssue, nil, ActionRefData{ActionItemID: item.ID})
	ev = alice.last(t)
	if err := json.Unmarshal(ev.Data, &item); err != nil || ev.Type != EventActionUpdated {
		t.Fatalf("unexpected conversion event %+v (%v)", ev, err)
	}
	if item.IssueID == nil || *item.IssueID != "ISSUE-42" {
		t.Fatalf("issue link not recorded: %+v", item)
	}
	if len(h.issues.requests) != 1 {
		t.Fatalf("expected one issue request, got %d", len(h.issues.requests))
	}
	req := h.issues.requests[0]
	if req.ReporterID != "bob" || req.ProjectID != h.board.ProjectID || req.Title != note.Text {
		t.Fatalf("unexpected issue request %+v", req)
	}

	done := true
	h.send(alice, EventActionUpdate, nil, ActionUpdateData{ActionItemID: item.ID, IsDone: &done})
	if ev := bob.last(t); ev.Type != EventActionUpdated {
		t.Fatalf("expected action.updated, got %s", ev.Type)
	}

	h.send(alice, EventActionDelete, nil, ActionRefData{ActionItemID: item.ID})
	if ev := bob.last(t); ev.Type != EventActionDeleted {
		t.Fatalf("expected action.deleted, got %s", ev.Type)
	}
}

func TestBoardUpdateBroadcasts(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)

	limit := 7
	h.send(alice, EventBoardUpdate, &h.board.ID, boards.UpdateBoardRequest{VoteLimit: &limit})
	ev := bob.last(t)
	var board models.Board
	if err := json.Unmarshal(ev.Data, &board); err != nil || ev.Type != EventBoardUpdated {
		t.Fatalf("unexpected board event %+v (%v)", ev, err)
	}
	if board.VoteLimit != 7 || board.Name != "Sprint 12" {
		t.Fatalf("unexpected board %+v", board)
	}
}

func TestLeaveAndDisconnectAnnounceDeparture(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)
	alice.reset()

	h.send(bob, EventLeave, &h.board.ID, nil)
	if ev := alice.last(t); ev.Type != EventUserLeft {
		t.Fatalf("expected user.left, got %s", ev.Type)
	}

	alice.reset()
	h.send(bob, EventLeave, &h.board.ID, nil)
	if got := alice.types(); len(got) != 0 {
		t.Fatalf("leaving twice must be silent, got %v", got)
	}

	h.join(bob)
	alice.reset()
	h.d.Disconnect(h.ctx, NewSession(bob, h.clock.Now()))
	var presence PresencePayload
	ev := alice.last(t)
	if err := json.Unmarshal(ev.Data, &presence); err != nil || ev.Type != EventUserLeft || presence.UserID != "bob" {
		t.Fatalf("unexpected departure event %+v (%v)", ev, err)
	}
	if h.registry.IsMember(bob, h.board.ID) {
		t.Fatal("disconnect must drop membership")
	}
}

func TestMalformedRequests(t *testing.T) {
	h := newHarness(t, 3)
	alice := newFakePeer("alice")
	h.join(alice)

	h.d.Dispatch(h.ctx, NewSession(alice, h.clock.Now()), Inbound{Type: "note.explode", RequestID: "r1"})
	ev := alice.last(t)
	if payload := errorOf(t, ev); payload.Code != "validation_failed" || ev.RequestID != "r1" {
		t.Fatalf("unexpected error for unknown type: %+v %+v", ev, payload)
	}

	h.d.Dispatch(h.ctx, NewSession(alice, h.clock.Now()), Inbound{Type: EventNoteCreate, Data: json.RawMessage(`{"column_id": 12}`)})
	if payload := errorOf(t, alice.last(t)); payload.Code != "validation_failed" {
		t.Fatalf("unexpected error for bad payload: %+v", payload)
	}

	h.send(alice, EventTimerStart, nil, nil)
	if payload := errorOf(t, alice.last(t)); payload.Code != "validation_failed" {
		t.Fatalf("unexpected error for missing board: %+v", payload)
	}
}

func TestPingReturnsServerTime(t *testing.T) {
	h := newHarness(t, 3)
	alice := newFakePeer("alice")

	h.send(alice, EventPing, nil, nil)
	ev := alice.last(t)
	var pong PongPayload
	if err := json.Unmarshal(ev.Data, &pong); err != nil || ev.Type != EventPong {
		t.Fatalf("unexpected pong %+v (%v)", ev, err)
	}
	if !pong.ServerTime.Equal(h.clock.Now()) {
		t.Fatalf("expected server time %v, got %v", h.clock.Now(), pong.ServerTime)
	}
}

func TestLateJoinerDoesNotReplayEarlierChanges(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	note := h.createNote(alice, "celebrate the launch")
	h.send(alice, EventVoteToggle, nil, NoteRefData{NoteID: note.ID})

	h.join(bob)
	if got := bob.types(); len(got) != 1 {
		t.Fatalf("bob should only get board.state, got %v", got)
	}
	var state struct {
		Notes []boards.NoteView `json:"notes"`
	}
	if err := json.Unmarshal(bob.last(t).Data, &state); err != nil {
		t.Fatalf("decode board.state: %v", err)
	}
	if len(state.Notes) != 1 || state.Notes[0].VoteCount != 1 {
		t.Fatalf("expected the vote in the snapshot, got %+v", state.Notes)
	}

	// Later toggles carry the note's total, so applying one is idempotent.
	h.send(bob, EventVoteToggle, nil, NoteRefData{NoteID: note.ID})
	var res votes.Result
	if err := json.Unmarshal(alice.last(t).Data, &res); err != nil {
		t.Fatalf("decode vote: %v", err)
	}
	if res.UserID != "bob" || res.VoteCount != 2 {
		t.Fatalf("unexpected vote result %+v", res)
	}
}

func TestJoinRollsBackWhenStateUnavailable(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)

	deps := h.deps
	deps.Boards = snapshotFails{BoardsApp: h.boards}
	h.d = NewDispatcher(deps)
	alice.reset()

	h.send(bob, EventJoin, &h.board.ID, nil)
	if payload := errorOf(t, bob.last(t)); payload.Code != "internal" {
		t.Fatalf("expected internal error, got %+v", payload)
	}
	if h.registry.IsMember(bob, h.board.ID) {
		t.Fatal("a failed join must not leave the connection in the room")
	}
	if got := alice.types(); len(got) != 0 {
		t.Fatalf("room must not hear about a failed join, got %v", got)
	}

	// An existing member rejoining keeps its membership when state fails.
	h.send(alice, EventJoin, &h.board.ID, nil)
	if !h.registry.IsMember(alice, h.board.ID) {
		t.Fatal("a failed rejoin must not drop an existing member")
	}
}

func TestCustomBoardColumns(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	custom, err := h.boards.Create(h.ctx, boards.CreateBoardRequest{
		ProjectID: uuid.New(),
		Name:      "Free form",
		Template:  models.BoardTemplateCustom,
		CreatedBy: "alice",
	})
	if err != nil {
		t.Fatalf("create custom board: %v", err)
	}
	h.joinBoard(alice, custom.ID)
	h.joinBoard(bob, custom.ID)

	h.send(alice, EventColumnCreate, &custom.ID, ColumnCreateData{Name: "Kudos", Color: "#f59e0b"})
	ev := bob.last(t)
	var col models.Column
	if err := json.Unmarshal(ev.Data, &col); err != nil || ev.Type != EventColumnCreated {
		t.Fatalf("unexpected column event %+v (%v)", ev, err)
	}
	if col.BoardID != custom.ID || col.Name != "Kudos" || col.Position != 0 {
		t.Fatalf("unexpected column %+v", col)
	}

	h.send(bob, EventNoteCreate, nil, NoteCreateData{ColumnID: col.ID, Text: "thanks for the pairing"})
	if ev := alice.last(t); ev.Type != EventNoteCreated {
		t.Fatalf("expected note.created on the new column, got %s: %s", ev.Type, ev.Data)
	}

	// Template boards keep their template columns.
	h.join(alice)
	h.send(alice, EventColumnCreate, &h.board.ID, ColumnCreateData{Name: "Extra"})
	if payload := errorOf(t, alice.last(t)); payload.Code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %+v", payload)
	}
}

func TestBoardDeleteByCreatorClosesRoom(t *testing.T) {
	h := newHarness(t, 3)
	owner, bob := newFakePeer("owner"), newFakePeer("bob")
	h.join(owner)
	h.join(bob)
	owner.reset()

	h.send(bob, EventBoardDelete, &h.board.ID, nil)
	if payload := errorOf(t, bob.last(t)); payload.Code != "unauthorized" {
		t.Fatalf("expected unauthorized, got %+v", payload)
	}
	if got := owner.types(); len(got) != 0 {
		t.Fatalf("rejected delete must not reach the room, got %v", got)
	}

	h.send(owner, EventBoardDelete, &h.board.ID, nil)
	for _, p := range []*fakePeer{owner, bob} {
		ev := p.last(t)
		var payload BoardDeletedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil || ev.Type != EventBoardDeleted || payload.BoardID != h.board.ID {
			t.Fatalf("unexpected delete event for %s: %+v (%v)", p.identity.UserID, ev, err)
		}
	}
	if h.registry.IsMember(owner, h.board.ID) || h.registry.IsMember(bob, h.board.ID) {
		t.Fatal("deleting a board closes its room")
	}
	if _, err := h.store.GetBoard(h.ctx, h.board.ID); err == nil {
		t.Fatal("board should be gone from storage")
	}
}

func TestTimerSyncRepliesToSenderOnly(t *testing.T) {
	h := newHarness(t, 3)
	alice, bob := newFakePeer("alice"), newFakePeer("bob")
	h.join(alice)
	h.join(bob)
	h.send(alice, EventTimerStart, &h.board.ID, nil)
	startedAt := h.clock.Now()
	bob.reset()

	h.clock.Advance(45 * time.Second)
	h.send(alice, EventTimerSync, &h.board.ID, nil)
	ev := alice.last(t)
	var state timer.State
	if err := json.Unmarshal(ev.Data, &state); err != nil || ev.Type != EventTimerState {
		t.Fatalf("unexpected sync reply %+v (%v)", ev, err)
	}
	if !state.Running || state.StartedAt == nil || !state.StartedAt.Equal(startedAt) || !state.ServerTime.Equal(h.clock.Now()) {
		t.Fatalf("unexpected timer state %+v", state)
	}
	if remaining := timer.Remaining(state, state.ServerTime); remaining != 255*time.Second {
		t.Fatalf("expected 255s remaining, got %v", remaining)
	}
	if got := bob.types(); len(got) != 0 {
		t.Fatalf("timer.sync is private, got %v", got)
	}
}
