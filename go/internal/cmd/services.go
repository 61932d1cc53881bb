package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/boards"
	"github.com/mcdev12/retroboard/go/internal/retro/conversion"
	"github.com/mcdev12/retroboard/go/internal/retro/gateway"
	"github.com/mcdev12/retroboard/go/internal/retro/lock"
	"github.com/mcdev12/retroboard/go/internal/retro/notes"
	"github.com/mcdev12/retroboard/go/internal/retro/timer"
	"github.com/mcdev12/retroboard/go/internal/retro/votes"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func setupApps(cfg Config, store retro.Store, redisClient *redis.Client) (gateway.Apps, error) {
	// Storage → App layer → Gateway
	clock := clockwork.NewRealClock()

	var locker lock.Locker = lock.NewKeyedMutex()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, lock.DefaultRedisLockerConfig())
		log.Info().Msg("using redis locks for votes and timers")
	}

	catalog, err := boards.DefaultCatalog()
	if cfg.TemplatesPath != "" {
		catalog, err = boards.LoadCatalog(cfg.TemplatesPath)
	}
	if err != nil {
		return gateway.Apps{}, fmt.Errorf("failed to load board templates: %w", err)
	}

	var issues conversion.IssueCreator
	if cfg.IssueServiceURL != "" {
		httpClient := &http.Client{Timeout: 10 * time.Second}
		issues = conversion.NewConnectIssueClient(httpClient, cfg.IssueServiceURL, cfg.IssueToken)
		log.Info().Str("url", cfg.IssueServiceURL).Msg("issue tracker configured")
	} else {
		log.Warn().Msg("ISSUE_SERVICE_URL not set; action items cannot be turned into issues")
	}

	return gateway.Apps{
		Boards:     boards.NewApp(store, catalog, clock),
		Notes:      notes.NewApp(store),
		Votes:      votes.NewLedger(store, locker),
		Timer:      timer.NewCoordinator(store, clock, locker),
		Conversion: conversion.NewPipeline(store, issues),
		Clock:      clock,
	}, nil
}

func setupGateway(cfg Config, apps gateway.Apps) (*gateway.Service, error) {
	gatewayConfig := gateway.DefaultConfig()
	if cfg.NATSURL != "" {
		relayConfig := gateway.DefaultRelayConfig()
		relayConfig.URL = cfg.NATSURL
		gatewayConfig.Relay = &relayConfig
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}

	service, err := gateway.NewService(gatewayConfig, apps, resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway service: %w", err)
	}
	return service, nil
}
