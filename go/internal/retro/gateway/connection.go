package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	// EventTimeout bounds the work done for a single inbound event.
	EventTimeout time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024, // a full-length note plus envelope
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		EventTimeout:    10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Connection is one client WebSocket. It satisfies registry.Peer.
type Connection struct {
	id       string
	identity models.Identity
	conn     *websocket.Conn
	config   ConnectionConfig

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	ConnectedAt time.Time
}

// NewConnection wraps an upgraded WebSocket.
func NewConnection(conn *websocket.Conn, identity models.Identity, config ConnectionConfig) *Connection {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &Connection{
		id:          uuid.NewString(),
		identity:    identity,
		conn:        conn,
		config:      config,
		send:        make(chan []byte, config.SendBufferSize),
		done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Identity() models.Identity { return c.identity }

// Send enqueues payload for the write pump. A connection that cannot keep up
// is closed rather than allowed to stall the room.
func (c *Connection) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		log.Warn().
			Str("connection_id", c.id).
			Str("user_id", c.identity.UserID).
			Msg("connection send buffer full, closing connection")
		c.Close()
		return false
	}
}

// Close asks the write pump to send a close frame and drop the socket. Safe
// to call more than once and from any goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Serve runs the connection until the client goes away or ctx is cancelled.
// Inbound frames are dispatched one at a time in arrival order.
func (c *Connection) Serve(ctx context.Context, d *Dispatcher) {
	session := NewSession(c, c.ConnectedAt)

	go c.writePump()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	c.readPump(ctx, d, session)

	c.Close()
	// The request context may already be gone; presence cleanup still has to run.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
	defer cancel()
	d.Disconnect(cleanupCtx, session)

	log.Info().
		Str("connection_id", c.id).
		Str("user_id", c.identity.UserID).
		Dur("connected_for", time.Since(c.ConnectedAt)).
		Msg("WebSocket connection closed")
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump(ctx context.Context, d *Dispatcher, session *Session) {
	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var in Inbound
		if err := json.Unmarshal(message, &in); err != nil {
			d.SendError(session, "", retro.ValidationError("message is not valid JSON"))
			continue
		}

		eventCtx, cancel := context.WithTimeout(ctx, c.config.EventTimeout)
		d.Dispatch(eventCtx, session, in)
		cancel()
	}
}
