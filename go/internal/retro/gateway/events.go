package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro/boards"
)

// EventType names an inbound or outbound event.
type EventType string

// Inbound event types.
const (
	EventJoin             EventType = "join"
	EventLeave            EventType = "leave"
	EventPing             EventType = "ping"
	EventCursorMove       EventType = "cursor.move"
	EventNoteCreate       EventType = "note.create"
	EventNoteUpdate       EventType = "note.update"
	EventNoteMove         EventType = "note.move"
	EventNoteDelete       EventType = "note.delete"
	EventVoteToggle       EventType = "vote.toggle"
	EventTimerStart       EventType = "timer.start"
	EventTimerStop        EventType = "timer.stop"
	EventTimerSetDuration EventType = "timer.set_duration"
	EventTimerSync        EventType = "timer.sync"
	EventBoardUpdate      EventType = "board.update"
	EventBoardDelete      EventType = "board.delete"
	EventColumnCreate     EventType = "column.create"
	EventActionCreate     EventType = "action.create"
	EventActionUpdate     EventType = "action.update"
	EventActionDelete     EventType = "action.delete"
	EventActionToIssue    EventType = "action.to_issue"
)

// Outbound event types.
const (
	EventUserJoined    EventType = "user.joined"
	EventUserLeft      EventType = "user.left"
	EventBoardState    EventType = "board.state"
	EventBoardUpdated  EventType = "board.updated"
	EventBoardDeleted  EventType = "board.deleted"
	EventColumnCreated EventType = "column.created"
	EventNoteCreated   EventType = "note.created"
	EventNoteUpdated   EventType = "note.updated"
	EventNoteMoved     EventType = "note.moved"
	EventNoteDeleted   EventType = "note.deleted"
	EventVoteToggled   EventType = "vote.toggled"
	EventTimerStarted  EventType = "timer.started"
	EventTimerStopped  EventType = "timer.stopped"
	EventTimerUpdated  EventType = "timer.updated"
	EventTimerState    EventType = "timer.state"
	EventCursorMoved   EventType = "cursor.moved"
	EventActionCreated EventType = "action.created"
	EventActionUpdated EventType = "action.updated"
	EventActionDeleted EventType = "action.deleted"
	EventPong          EventType = "pong"
	EventError         EventType = "error"
)

// Inbound is a message received from a client. BoardID is only read by
// events addressed to a board as a whole (join, leave, timer, cursor, board,
// column and action creation); everything else derives the board from the
// entity it touches.
type Inbound struct {
	Type      EventType       `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	BoardID   *uuid.UUID      `json:"board_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event is a message sent to clients.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	BoardID   string          `json:"board_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Inbound payloads

type NoteCreateData struct {
	ColumnID uuid.UUID `json:"column_id"`
	Text     string    `json:"text"`
	Color    *string   `json:"color,omitempty"`
}

type NoteUpdateData struct {
	NoteID   uuid.UUID `json:"note_id"`
	Text     *string   `json:"text,omitempty"`
	Position *int      `json:"position,omitempty"`
}

type NoteMoveData struct {
	NoteID   uuid.UUID `json:"note_id"`
	ColumnID uuid.UUID `json:"column_id"`
	Position *int      `json:"position"`
}

type NoteRefData struct {
	NoteID uuid.UUID `json:"note_id"`
}

type CursorMoveData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type TimerDurationData struct {
	DurationSec int `json:"duration_sec"`
}

type ColumnCreateData struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type ActionCreateData struct {
	NoteID     uuid.UUID `json:"note_id"`
	AssigneeID *string   `json:"assignee_id,omitempty"`
}

type ActionUpdateData struct {
	ActionItemID uuid.UUID `json:"action_item_id"`
	Text         *string   `json:"text,omitempty"`
	AssigneeID   *string   `json:"assignee_id,omitempty"`
	IsDone       *bool     `json:"is_done,omitempty"`
}

type ActionRefData struct {
	ActionItemID uuid.UUID `json:"action_item_id"`
}

// Outbound payloads

// BoardStatePayload is sent to a connection right after it joins.
type BoardStatePayload struct {
	*boards.Snapshot
	Members   []models.Identity `json:"members"`
	VotesUsed int               `json:"votes_used"`
	VoteLimit int               `json:"vote_limit"`
}

type PresencePayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type NoteDeletedPayload struct {
	NoteID uuid.UUID `json:"note_id"`
}

type CursorMovedPayload struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

type BoardDeletedPayload struct {
	BoardID uuid.UUID `json:"board_id"`
}

type ActionDeletedPayload struct {
	ActionItemID uuid.UUID `json:"action_item_id"`
}

type PongPayload struct {
	ServerTime time.Time `json:"server_time"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
