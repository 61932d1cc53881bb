package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/retroboard/go/internal/retro/gateway"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg Config, service *gateway.Service) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// WebSocket and board state routes
	service.RegisterRoutes(mux)

	setupHealthCheck(mux, service)

	handler := c.Handler(mux)

	// No WriteTimeout: websocket handlers hold the request for the life of the connection.
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux, service *gateway.Service) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		stats := service.Stats()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"service":      "retroboard-gateway",
			"connections":  stats.TotalConnections,
			"active_rooms": stats.ActiveBoards,
		}); err != nil {
			log.Error().Err(err).Msg("failed to write info response")
		}
	})
}
