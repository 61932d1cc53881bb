package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/boards"
	"github.com/mcdev12/retroboard/go/internal/retro/conversion"
	"github.com/mcdev12/retroboard/go/internal/retro/notes"
	"github.com/mcdev12/retroboard/go/internal/retro/registry"
	"github.com/mcdev12/retroboard/go/internal/retro/timer"
	"github.com/mcdev12/retroboard/go/internal/retro/votes"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// BoardsApp defines what the gateway needs from the boards app
type BoardsApp interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Board, error)
	Update(ctx context.Context, id uuid.UUID, req boards.UpdateBoardRequest) (*models.Board, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddColumn(ctx context.Context, boardID uuid.UUID, name, color string) (*models.Column, error)
	Snapshot(ctx context.Context, boardID uuid.UUID) (*boards.Snapshot, error)
}

// NotesApp defines what the gateway needs from the notes app
type NotesApp interface {
	Create(ctx context.Context, req notes.CreateRequest) (*notes.Result, error)
	Update(ctx context.Context, noteID uuid.UUID, req notes.UpdateRequest) (*notes.Result, error)
	Move(ctx context.Context, noteID, targetColumnID uuid.UUID, position int) (*notes.Result, error)
	Delete(ctx context.Context, noteID uuid.UUID) (uuid.UUID, error)
	BoardForNote(ctx context.Context, noteID uuid.UUID) (uuid.UUID, error)
	BoardForColumn(ctx context.Context, columnID uuid.UUID) (uuid.UUID, error)
}

// VoteLedger defines what the gateway needs from the vote ledger
type VoteLedger interface {
	Toggle(ctx context.Context, noteID uuid.UUID, userID string) (*votes.Result, error)
	Tally(ctx context.Context, boardID uuid.UUID, userID string) (used, limit int, err error)
}

// TimerCoordinator defines what the gateway needs from the timer
type TimerCoordinator interface {
	Start(ctx context.Context, boardID uuid.UUID) (*timer.State, error)
	Stop(ctx context.Context, boardID uuid.UUID) (*timer.State, error)
	SetDuration(ctx context.Context, boardID uuid.UUID, seconds int) (*timer.State, error)
	State(ctx context.Context, boardID uuid.UUID) (*timer.State, error)
}

// ConversionPipeline defines what the gateway needs from the conversion pipeline
type ConversionPipeline interface {
	NoteToActionItem(ctx context.Context, boardID, noteID uuid.UUID, assigneeID *string) (*models.ActionItem, error)
	ActionItemToIssue(ctx context.Context, actionItemID, projectID uuid.UUID, reporterID string) (*models.ActionItem, error)
	UpdateActionItem(ctx context.Context, id uuid.UUID, req conversion.UpdateActionItemRequest) (*models.ActionItem, error)
	DeleteActionItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	GetActionItem(ctx context.Context, id uuid.UUID) (*models.ActionItem, error)
}

// Scope says who receives an outbound event.
type Scope int

const (
	// ScopeRoom reaches every connection in the room, the sender included.
	ScopeRoom Scope = iota
	// ScopeOthers reaches the room except the sender.
	ScopeOthers
	// ScopeSender reaches the sender only.
	ScopeSender
)

// Outbound is one event a handler wants delivered.
type Outbound struct {
	BoardID uuid.UUID
	Type    EventType
	Scope   Scope
	Data    any
}

// Session is the dispatcher's view of one connection.
type Session struct {
	Peer        registry.Peer
	ConnectedAt time.Time
}

// NewSession wraps a peer.
func NewSession(peer registry.Peer, connectedAt time.Time) *Session {
	return &Session{Peer: peer, ConnectedAt: connectedAt}
}

// Identity is the verified identity of the connection.
func (s *Session) Identity() models.Identity {
	return s.Peer.Identity()
}

// HandlerFunc handles one inbound event type.
type HandlerFunc func(ctx context.Context, s *Session, in Inbound) ([]Outbound, error)

// Dispatcher routes inbound events to the components and their results to
// the room. It knows nothing about websockets.
type Dispatcher struct {
	registry   *registry.Registry
	fanout     Fanout
	clock      clockwork.Clock
	boards     BoardsApp
	notes      NotesApp
	votes      VoteLedger
	timer      TimerCoordinator
	conversion ConversionPipeline

	handlers map[EventType]HandlerFunc
}

// DispatcherDeps groups the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Registry   *registry.Registry
	Fanout     Fanout
	Clock      clockwork.Clock
	Boards     BoardsApp
	Notes      NotesApp
	Votes      VoteLedger
	Timer      TimerCoordinator
	Conversion ConversionPipeline
}

// NewDispatcher creates a Dispatcher. A nil Fanout delivers through the
// registry; a nil Clock uses the real clock.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Fanout == nil {
		deps.Fanout = NewLocalFanout(deps.Registry)
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	d := &Dispatcher{
		registry:   deps.Registry,
		fanout:     deps.Fanout,
		clock:      deps.Clock,
		boards:     deps.Boards,
		notes:      deps.Notes,
		votes:      deps.Votes,
		timer:      deps.Timer,
		conversion: deps.Conversion,
	}
	d.handlers = map[EventType]HandlerFunc{
		EventJoin:             d.handleJoin,
		EventLeave:            d.handleLeave,
		EventPing:             d.handlePing,
		EventCursorMove:       d.handleCursorMove,
		EventNoteCreate:       d.handleNoteCreate,
		EventNoteUpdate:       d.handleNoteUpdate,
		EventNoteMove:         d.handleNoteMove,
		EventNoteDelete:       d.handleNoteDelete,
		EventVoteToggle:       d.handleVoteToggle,
		EventTimerStart:       d.handleTimerStart,
		EventTimerStop:        d.handleTimerStop,
		EventTimerSetDuration: d.handleTimerSetDuration,
		EventTimerSync:        d.handleTimerSync,
		EventBoardUpdate:      d.handleBoardUpdate,
		EventBoardDelete:      d.handleBoardDelete,
		EventColumnCreate:     d.handleColumnCreate,
		EventActionCreate:     d.handleActionCreate,
		EventActionUpdate:     d.handleActionUpdate,
		EventActionDelete:     d.handleActionDelete,
		EventActionToIssue:    d.handleActionToIssue,
	}
	return d
}

// Dispatch runs the handler for in. Success is delivered according to each
// outbound's scope; failure goes back to the sender only and never affects
// the room.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, in Inbound) {
	handler, ok := d.handlers[in.Type]
	if !ok {
		d.sendError(s, in, retro.ValidationError("unknown event type %q", in.Type))
		return
	}

	out, err := handler(ctx, s, in)
	if err != nil {
		d.sendError(s, in, err)
		return
	}
	for _, o := range out {
		d.deliver(ctx, s, in.RequestID, o)
		if o.Type == EventBoardDeleted {
			d.registry.CloseRoom(o.BoardID)
		}
	}
}

// Disconnect removes the session from every room and tells each room.
func (d *Dispatcher) Disconnect(ctx context.Context, s *Session) {
	id := s.Identity()
	for _, boardID := range d.registry.Disconnect(s.Peer) {
		d.deliver(ctx, s, "", Outbound{
			BoardID: boardID,
			Type:    EventUserLeft,
			Scope:   ScopeRoom,
			Data:    PresencePayload{UserID: id.UserID, DisplayName: id.DisplayName},
		})
	}
}

// SendError reports err to the session outside of a dispatch, for example
// when a frame cannot be decoded.
func (d *Dispatcher) SendError(s *Session, requestID string, err error) {
	d.sendError(s, Inbound{RequestID: requestID}, err)
}

func (d *Dispatcher) deliver(ctx context.Context, s *Session, requestID string, o Outbound) {
	payload, err := d.encode(o.BoardID, o.Type, requestID, o.Data)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(o.Type)).Msg("failed to encode event")
		return
	}

	switch o.Scope {
	case ScopeSender:
		d.registry.SendTo(s.Peer, payload)
		return
	case ScopeOthers:
		err = d.fanout.Publish(ctx, registry.Delivery{BoardID: o.BoardID, Payload: payload, ExcludePeerID: s.Peer.ID()})
	default:
		err = d.fanout.Publish(ctx, registry.Delivery{BoardID: o.BoardID, Payload: payload})
	}
	if err != nil {
		log.Warn().Err(err).
			Str("board_id", o.BoardID.String()).
			Str("event_type", string(o.Type)).
			Msg("fanout failed")
	}
}

func (d *Dispatcher) sendError(s *Session, in Inbound, err error) {
	log.WithLevel(logLevelFor(err)).Err(err).
		Str("connection_id", s.Peer.ID()).
		Str("user_id", s.Identity().UserID).
		Str("event_type", string(in.Type)).
		Str("request_id", in.RequestID).
		Msg("event rejected")

	var boardID uuid.UUID
	if in.BoardID != nil {
		boardID = *in.BoardID
	}
	payload, encErr := d.encode(boardID, EventError, in.RequestID, ErrorPayload{
		Code:    retro.Code(err),
		Message: retro.PublicMessage(err),
	})
	if encErr != nil {
		log.Error().Err(encErr).Msg("failed to encode error event")
		return
	}
	d.registry.SendTo(s.Peer, payload)
}

func (d *Dispatcher) encode(boardID uuid.UUID, eventType EventType, requestID string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: d.clock.Now().UTC(),
		RequestID: requestID,
		Data:      raw,
	}
	if boardID != uuid.Nil {
		ev.BoardID = boardID.String()
	}
	return json.Marshal(ev)
}

func (d *Dispatcher) requireMember(s *Session, boardID uuid.UUID) error {
	if !d.registry.IsMember(s.Peer, boardID) {
		return fmt.Errorf("not a member of board %s: %w", boardID, retro.ErrUnauthorized)
	}
	return nil
}

func decode[T any](in Inbound) (T, error) {
	var v T
	if len(in.Data) == 0 {
		return v, retro.ValidationError("%s requires a data payload", in.Type)
	}
	if err := json.Unmarshal(in.Data, &v); err != nil {
		return v, retro.ValidationError("malformed %s payload", in.Type)
	}
	return v, nil
}

func boardOf(in Inbound) (uuid.UUID, error) {
	if in.BoardID == nil || *in.BoardID == uuid.Nil {
		return uuid.Nil, retro.ValidationError("%s requires board_id", in.Type)
	}
	return *in.BoardID, nil
}

func requireID(id uuid.UUID, field string) error {
	if id == uuid.Nil {
		return retro.ValidationError("%s is required", field)
	}
	return nil
}

// Presence

func (d *Dispatcher) handleJoin(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := boardOf(in)
	if err != nil {
		return nil, err
	}
	if _, err := d.boards.Get(ctx, boardID); err != nil {
		return nil, err
	}

	// Membership precedes the snapshot read and is undone if no state is sent.
	added := d.registry.Join(s.Peer, boardID)
	rollback := func(err error) ([]Outbound, error) {
		if added {
			d.registry.Leave(s.Peer, boardID)
		}
		return nil, err
	}

	snapshot, err := d.boards.Snapshot(ctx, boardID)
	if err != nil {
		return rollback(err)
	}
	id := s.Identity()
	used, limit, err := d.votes.Tally(ctx, boardID, id.UserID)
	if err != nil {
		return rollback(err)
	}

	out := []Outbound{{
		BoardID: boardID,
		Type:    EventBoardState,
		Scope:   ScopeSender,
		Data: BoardStatePayload{
			Snapshot:  snapshot,
			Members:   d.registry.Members(boardID),
			VotesUsed: used,
			VoteLimit: limit,
		},
	}}
	if added {
		out = append(out, Outbound{
			BoardID: boardID,
			Type:    EventUserJoined,
			Scope:   ScopeOthers,
			Data:    PresencePayload{UserID: id.UserID, DisplayName: id.DisplayName},
		})
		log.Info().
			Str("connection_id", s.Peer.ID()).
			Str("user_id", id.UserID).
			Str("board_id", boardID.String()).
			Msg("joined board")
	}
	return out, nil
}

func (d *Dispatcher) handleLeave(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := boardOf(in)
	if err != nil {
		return nil, err
	}
	if !d.registry.Leave(s.Peer, boardID) {
		return nil, nil
	}
	id := s.Identity()
	return []Outbound{{
		BoardID: boardID,
		Type:    EventUserLeft,
		Scope:   ScopeRoom,
		Data:    PresencePayload{UserID: id.UserID, DisplayName: id.DisplayName},
	}}, nil
}

func (d *Dispatcher) handlePing(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	return []Outbound{{
		Type:  EventPong,
		Scope: ScopeSender,
		Data:  PongPayload{ServerTime: d.clock.Now().UTC()},
	}}, nil
}

// Cursor positions never touch storage and are not echoed to the sender.
func (d *Dispatcher) handleCursorMove(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := boardOf(in)
	if err != nil {
		return nil, err
	}
	if err := d.requireMember(s, boardID); err != nil {
		return nil, err
	}
	data, err := decode[CursorMoveData](in)
	if err != nil {
		return nil, err
	}
	id := s.Identity()
	return []Outbound{{
		BoardID: boardID,
		Type:    EventCursorMoved,
		Scope:   ScopeOthers,
		Data:    CursorMovedPayload{UserID: id.UserID, DisplayName: id.DisplayName, X: data.X, Y: data.Y},
	}}, nil
}

// Notes

func (d *Dispatcher) handleNoteCreate(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	data, err := decode[NoteCreateData](in)
	if err != nil {
		return nil, err
	}
	if err := requireID(data.ColumnID, "column_id"); err != nil {
		return nil, err
	}
	boardID, err := d.notes.BoardForColumn(ctx, data.ColumnID)
	if err != nil {
		return nil, err
	}
	if err := d.requireMember(s, boardID); err != nil {
		return nil, err
	}

	res, err := d.notes.Create(ctx, notes.CreateRequest{
		ColumnID: data.ColumnID,
		AuthorID: s.Identity().UserID,
		Text:     data.Text,
		Color:    data.Color,
	})
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: res.BoardID, Type: EventNoteCreated, Data: res.Note}}, nil
}

func (d *Dispatcher) handleNoteUpdate(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	data, err := decode[NoteUpdateData](in)
	if err != nil {
		return nil, err
	}
	if err := d.authorizeNote(ctx, s, data.NoteID); err != nil {
		return nil, err
	}

	res, err := d.notes.Update(ctx, data.NoteID, notes.UpdateRequest{Text: data.Text, Position: data.Position})
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: res.BoardID, Type: EventNoteUpdated, Data: res.Note}}, nil
}

func (d *Dispatcher) handleNoteMove(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	data, err := decode[NoteMoveData](in)
	if err != nil {
		return nil, err
	}
	if err := requireID(data.ColumnID, "column_id"); err != nil {
		return nil, err
	}
	if data.Position == nil {
		return nil, retro.ValidationError("position is required")
	}
	if err := d.authorizeNote(ctx, s, data.NoteID); err != nil {
		return nil, err
	}

	res, err := d.notes.Move(ctx, data.NoteID, data.ColumnID, *data.Position)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: res.BoardID, Type: EventNoteMoved, Data: res.Note}}, nil
}

func (d *Dispatcher) handleNoteDelete(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	data, err := decode[NoteRefData](in)
	if err != nil {
		return nil, err
	}
	if err := d.authorizeNote(ctx, s, data.NoteID); err != nil {
		return nil, err
	}

	boardID, err := d.notes.Delete(ctx, data.NoteID)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventNoteDeleted, Data: NoteDeletedPayload{NoteID: data.NoteID}}}, nil
}

func (d *Dispatcher) authorizeNote(ctx context.Context, s *Session, noteID uuid.UUID) error {
	if err := requireID(noteID, "note_id"); err != nil {
		return err
	}
	boardID, err := d.notes.BoardForNote(ctx, noteID)
	if err != nil {
		return err
	}
	return d.requireMember(s, boardID)
}

// Votes

func (d *Dispatcher) handleVoteToggle(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	data, err := decode[NoteRefData](in)
	if err != nil {
		return nil, err
	}
	if err := d.authorizeNote(ctx, s, data.NoteID); err != nil {
		return nil, err
	}

	// The voter is always the connection's identity, never the payload.
	res, err := d.votes.Toggle(ctx, data.NoteID, s.Identity().UserID)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: res.BoardID, Type: EventVoteToggled, Data: res}}, nil
}

// Timer

func (d *Dispatcher) handleTimerStart(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := d.memberBoard(s, in)
	if err != nil {
		return nil, err
	}
	state, err := d.timer.Start(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventTimerStarted, Data: state}}, nil
}

func (d *Dispatcher) handleTimerStop(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := d.memberBoard(s, in)
	if err != nil {
		return nil, err
	}
	state, err := d.timer.Stop(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventTimerStopped, Data: state}}, nil
}

func (d *Dispatcher) handleTimerSetDuration(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := d.memberBoard(s, in)
	if err != nil {
		return nil, err
	}
	data, err := decode[TimerDurationData](in)
	if err != nil {
		return nil, err
	}
	state, err := d.timer.SetDuration(ctx, boardID, data.DurationSec)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventTimerUpdated, Data: state}}, nil
}

// Sent to one connection to resynchronise its countdown and clock offset.
func (d *Dispatcher) handleTimerSync(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := d.memberBoard(s, in)
	if err != nil {
		return nil, err
	}
	state, err := d.timer.State(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventTimerState, Scope: ScopeSender, Data: state}}, nil
}

// Board settings

func (d *Dispatcher) handleBoardUpdate(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := d.memberBoard(s, in)
	if err != nil {
		return nil, err
	}
	req, err := decode[boards.UpdateBoardRequest](in)
	if err != nil {
		return nil, err
	}
	board, err := d.boards.Update(ctx, boardID, req)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventBoardUpdated, Data: board}}, nil
}

// Only the creator may delete a board. Everyone in the room is told, then the
// room is closed.
func (d *Dispatcher) handleBoardDelete(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := d.memberBoard(s, in)
	if err != nil {
		return nil, err
	}
	board, err := d.boards.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board.CreatedBy != s.Identity().UserID {
		return nil, fmt.Errorf("only the board creator can delete board %s: %w", boardID, retro.ErrUnauthorized)
	}
	if err := d.boards.Delete(ctx, boardID); err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventBoardDeleted, Data: BoardDeletedPayload{BoardID: boardID}}}, nil
}

func (d *Dispatcher) handleColumnCreate(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := d.memberBoard(s, in)
	if err != nil {
		return nil, err
	}
	data, err := decode[ColumnCreateData](in)
	if err != nil {
		return nil, err
	}
	col, err := d.boards.AddColumn(ctx, boardID, data.Name, data.Color)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventColumnCreated, Data: col}}, nil
}

// Action items

func (d *Dispatcher) handleActionCreate(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	boardID, err := d.memberBoard(s, in)
	if err != nil {
		return nil, err
	}
	data, err := decode[ActionCreateData](in)
	if err != nil {
		return nil, err
	}
	if err := requireID(data.NoteID, "note_id"); err != nil {
		return nil, err
	}
	item, err := d.conversion.NoteToActionItem(ctx, boardID, data.NoteID, data.AssigneeID)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventActionCreated, Data: item}}, nil
}

func (d *Dispatcher) handleActionUpdate(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	data, err := decode[ActionUpdateData](in)
	if err != nil {
		return nil, err
	}
	if _, err := d.authorizeActionItem(ctx, s, data.ActionItemID); err != nil {
		return nil, err
	}
	item, err := d.conversion.UpdateActionItem(ctx, data.ActionItemID, conversion.UpdateActionItemRequest{
		Text:       data.Text,
		AssigneeID: data.AssigneeID,
		IsDone:     data.IsDone,
	})
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: item.BoardID, Type: EventActionUpdated, Data: item}}, nil
}

func (d *Dispatcher) handleActionDelete(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	data, err := decode[ActionRefData](in)
	if err != nil {
		return nil, err
	}
	if _, err := d.authorizeActionItem(ctx, s, data.ActionItemID); err != nil {
		return nil, err
	}
	boardID, err := d.conversion.DeleteActionItem(ctx, data.ActionItemID)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: boardID, Type: EventActionDeleted, Data: ActionDeletedPayload{ActionItemID: data.ActionItemID}}}, nil
}

func (d *Dispatcher) handleActionToIssue(ctx context.Context, s *Session, in Inbound) ([]Outbound, error) {
	data, err := decode[ActionRefData](in)
	if err != nil {
		return nil, err
	}
	item, err := d.authorizeActionItem(ctx, s, data.ActionItemID)
	if err != nil {
		return nil, err
	}
	board, err := d.boards.Get(ctx, item.BoardID)
	if err != nil {
		return nil, err
	}
	updated, err := d.conversion.ActionItemToIssue(ctx, item.ID, board.ProjectID, s.Identity().UserID)
	if err != nil {
		return nil, err
	}
	return []Outbound{{BoardID: updated.BoardID, Type: EventActionUpdated, Data: updated}}, nil
}

func (d *Dispatcher) authorizeActionItem(ctx context.Context, s *Session, id uuid.UUID) (*models.ActionItem, error) {
	if err := requireID(id, "action_item_id"); err != nil {
		return nil, err
	}
	item, err := d.conversion.GetActionItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.requireMember(s, item.BoardID); err != nil {
		return nil, err
	}
	return item, nil
}

func (d *Dispatcher) memberBoard(s *Session, in Inbound) (uuid.UUID, error) {
	boardID, err := boardOf(in)
	if err != nil {
		return uuid.Nil, err
	}
	if err := d.requireMember(s, boardID); err != nil {
		return uuid.Nil, err
	}
	return boardID, nil
}

// Expected rejections are warnings; anything else is a server fault.
func logLevelFor(err error) zerolog.Level {
	if errors.Is(err, retro.ErrValidation) || errors.Is(err, retro.ErrNotFound) ||
		errors.Is(err, retro.ErrUnauthorized) || errors.Is(err, retro.ErrLimitExceeded) {
		return zerolog.WarnLevel
	}
	return zerolog.ErrorLevel
}
