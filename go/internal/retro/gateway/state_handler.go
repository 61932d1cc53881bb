package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/auth"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/boards"
	"github.com/rs/zerolog/log"
)

// StateProvider defines what the HTTP handlers need from the boards app
type StateProvider interface {
	Create(ctx context.Context, req boards.CreateBoardRequest) (*models.Board, error)
	Snapshot(ctx context.Context, boardID uuid.UUID) (*boards.Snapshot, error)
	Templates() []models.BoardTemplate
}

// NoteLister lists a board's notes in render order.
type NoteLister interface {
	ListBoard(ctx context.Context, boardID uuid.UUID) ([]models.Note, error)
}

// ActionItemLister lists a board's action items.
type ActionItemLister interface {
	ListActionItems(ctx context.Context, boardID uuid.UUID) ([]models.ActionItem, error)
}

// CreateBoardBody is the JSON body of POST /api/boards.
type CreateBoardBody struct {
	ProjectID        uuid.UUID            `json:"project_id"`
	Name             string               `json:"name"`
	Template         models.BoardTemplate `json:"template"`
	TimerDurationSec *int                 `json:"timer_duration_sec,omitempty"`
	VoteLimit        *int                 `json:"vote_limit,omitempty"`
	IsAnonymous      *bool                `json:"is_anonymous,omitempty"`
}

// StateHandler serves board state and creation over plain HTTP.
type StateHandler struct {
	provider StateProvider
	notes    NoteLister
	actions  ActionItemLister
	resolver auth.Resolver
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider, notes NoteLister, actions ActionItemLister, resolver auth.Resolver) *StateHandler {
	return &StateHandler{provider: provider, notes: notes, actions: actions, resolver: resolver}
}

// boardFromRequest authenticates the caller and parses the {id} path value.
func (h *StateHandler) boardFromRequest(r *http.Request) (uuid.UUID, error) {
	if _, err := h.resolver.Resolve(r); err != nil {
		return uuid.Nil, err
	}
	boardID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, retro.ValidationError("invalid board id format")
	}
	return boardID, nil
}

// HandleGetBoardState handles GET /api/boards/{id}/state
func (h *StateHandler) HandleGetBoardState(w http.ResponseWriter, r *http.Request) {
	boardID, err := h.boardFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := h.provider.Snapshot(r.Context(), boardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleListNotes handles GET /api/boards/{id}/notes
func (h *StateHandler) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	boardID, err := h.boardFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.notes.ListBoard(r.Context(), boardID)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": list})
}

// HandleListActionItems handles GET /api/boards/{id}/action-items
func (h *StateHandler) HandleListActionItems(w http.ResponseWriter, r *http.Request) {
	boardID, err := h.boardFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := h.actions.ListActionItems(r.Context(), boardID)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []models.ActionItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"action_items": items})
}

// HandleCreateBoard handles POST /api/boards
func (h *StateHandler) HandleCreateBoard(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body CreateBoardBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&body); err != nil {
		writeError(w, retro.ValidationError("request body is not valid JSON"))
		return
	}

	board, err := h.provider.Create(r.Context(), boards.CreateBoardRequest{
		ProjectID:        body.ProjectID,
		Name:             body.Name,
		Template:         body.Template,
		TimerDurationSec: body.TimerDurationSec,
		VoteLimit:        body.VoteLimit,
		IsAnonymous:      body.IsAnonymous,
		CreatedBy:        identity.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

// HandleListTemplates handles GET /api/boards/templates
func (h *StateHandler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": h.provider.Templates()})
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/boards", h.HandleCreateBoard)
	mux.HandleFunc("GET /api/boards/templates", h.HandleListTemplates)
	mux.HandleFunc("GET /api/boards/{id}/state", h.HandleGetBoardState)
	mux.HandleFunc("GET /api/boards/{id}/notes", h.HandleListNotes)
	mux.HandleFunc("GET /api/boards/{id}/action-items", h.HandleListActionItems)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, retro.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, retro.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, retro.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorPayload{Code: retro.Code(err), Message: retro.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
