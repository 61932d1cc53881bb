package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/retroboard/go/internal/auth"
	"github.com/mcdev12/retroboard/go/internal/retro/registry"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for board connections
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	config     ConnectionConfig
	resolver   auth.Resolver
	dispatcher *Dispatcher
	registry   *registry.Registry

	mu      sync.RWMutex
	baseCtx context.Context
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(config ConnectionConfig, resolver auth.Resolver, d *Dispatcher, reg *registry.Registry) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:     config,
		resolver:   resolver,
		dispatcher: d,
		registry:   reg,
		baseCtx:    context.Background(),
	}
}

// bind ties open connections to ctx so they close when the service stops.
func (h *WebSocketHandler) bind(ctx context.Context) {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()
}

func (h *WebSocketHandler) base() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.baseCtx
}

// HandleBoardConnection authenticates the caller and serves the socket until
// it closes. Rooms are joined afterwards with join events.
func (h *WebSocketHandler) HandleBoardConnection(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r)
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("rejected WebSocket connection")
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		log.Error().Err(err).Str("user_id", identity.UserID).Msg("failed to upgrade WebSocket connection")
		return
	}

	connection := NewConnection(conn, identity, h.config)
	log.Info().
		Str("connection_id", connection.ID()).
		Str("user_id", identity.UserID).
		Msg("WebSocket connection established")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.base(), cancel)
	defer stop()

	connection.Serve(ctx, h.dispatcher)
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Stats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/board", h.HandleBoardConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
