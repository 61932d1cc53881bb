// Command retroboard runs the real-time retrospective board gateway.
//
//	retroboard [serve]                 run the gateway (default)
//	retroboard migrate                 apply the database schema and exit
//	retroboard token <user-id> [name]  print a signed development token
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/retroboard/go/internal/auth"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro/repository"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg := loadConfig()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(cfg.LogLevel)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var err error
	switch command {
	case "serve":
		err = serve(cfg)
	case "migrate":
		err = migrate(cfg)
	case "token":
		err = printToken(cfg, os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("retroboard failed")
	}
}

func serve(cfg Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := setupStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := setupRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	apps, err := setupApps(cfg, store, redisClient)
	if err != nil {
		return err
	}
	service, err := setupGateway(cfg, apps)
	if err != nil {
		return err
	}
	server := setupServer(cfg, service)

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := service.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Store).
			Bool("relay", cfg.NATSURL != "").
			Bool("redis_locks", redisClient != nil).
			Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErr:
		cancel()
		<-serviceDone
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Cancelling first closes hijacked websocket connections, which Shutdown does not track.
	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("gateway service did not stop in time")
	}

	log.Info().Msg("retroboard shutdown complete")
	return nil
}

func migrate(cfg Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return repository.Migrate(ctx, cfg.Database.DSN())
}

func printToken(cfg Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: retroboard token <user-id> [display name]")
	}
	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}
	identity := models.Identity{UserID: args[0], DisplayName: strings.Join(args[1:], " ")}
	token, err := resolver.Issue(identity, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func newResolver(cfg Config) (*auth.JWTResolver, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return auth.NewJWTResolver(cfg.JWTSecret), nil
}
