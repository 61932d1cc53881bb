// Package gateway is the room broadcaster: it accepts client connections,
// routes their events to the board components and fans the results out to
// everyone in the affected board room.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/retroboard/go/internal/auth"
	"github.com/mcdev12/retroboard/go/internal/retro/boards"
	"github.com/mcdev12/retroboard/go/internal/retro/conversion"
	"github.com/mcdev12/retroboard/go/internal/retro/notes"
	"github.com/mcdev12/retroboard/go/internal/retro/registry"
	"github.com/mcdev12/retroboard/go/internal/retro/timer"
	"github.com/mcdev12/retroboard/go/internal/retro/votes"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	// Relay enables cross-instance fan-out through NATS; nil keeps delivery local.
	Relay *RelayConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// Apps are the board components the gateway drives.
type Apps struct {
	Boards     *boards.App
	Notes      *notes.App
	Votes      *votes.Ledger
	Timer      *timer.Coordinator
	Conversion *conversion.Pipeline
	Clock      clockwork.Clock
}

// Service is the gateway service that handles WebSocket connections and event broadcasting
type Service struct {
	registry     *registry.Registry
	relay        *Relay
	dispatcher   *Dispatcher
	wsHandler    *WebSocketHandler
	stateHandler *StateHandler
}

// NewService creates a new gateway service
func NewService(config Config, apps Apps, resolver auth.Resolver) (*Service, error) {
	reg := registry.New()

	var fanout Fanout = NewLocalFanout(reg)
	var relay *Relay
	if config.Relay != nil {
		var err error
		relay, err = NewRelay(reg, *config.Relay)
		if err != nil {
			return nil, fmt.Errorf("failed to create room relay: %w", err)
		}
		fanout = relay
	}

	dispatcher := NewDispatcher(DispatcherDeps{
		Registry:   reg,
		Fanout:     fanout,
		Clock:      apps.Clock,
		Boards:     apps.Boards,
		Notes:      apps.Notes,
		Votes:      apps.Votes,
		Timer:      apps.Timer,
		Conversion: apps.Conversion,
	})

	return &Service{
		registry:     reg,
		relay:        relay,
		dispatcher:   dispatcher,
		wsHandler:    NewWebSocketHandler(config.ConnectionConfig, resolver, dispatcher, reg),
		stateHandler: NewStateHandler(apps.Boards, apps.Notes, apps.Conversion, resolver),
	}, nil
}

// Start runs the gateway until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("relay", s.relay != nil).Msg("starting board gateway service")

	s.wsHandler.bind(ctx)

	if s.relay != nil {
		go func() {
			if err := s.relay.Start(ctx); err != nil {
				log.Error().Err(err).Msg("room relay failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("board gateway service shutting down")
	return s.Stop()
}

// Stop releases the relay connection and drops all room membership.
func (s *Service) Stop() error {
	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close room relay")
		}
	}
	s.registry.Close()
	log.Info().Msg("board gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("board gateway routes registered")
}

// Stats returns statistics about active connections.
func (s *Service) Stats() registry.Stats {
	return s.registry.Stats()
}
