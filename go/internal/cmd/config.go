package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/retroboard/go/internal/dbconfig"
	"github.com/rs/zerolog"
)

// Config is everything the retroboard binary reads from the environment.
type Config struct {
	Port            string
	LogLevel        zerolog.Level
	Store           string
	Database        dbconfig.Config
	NATSURL         string
	RedisURL        string
	JWTSecret       string
	IssueServiceURL string
	IssueToken      string
	TemplatesPath   string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

func loadConfig() Config {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return Config{
		Port:            getEnv("GATEWAY_PORT", "8081"),
		LogLevel:        level,
		Store:           strings.ToLower(getEnv("STORE", storePostgres)),
		Database:        dbconfig.NewConfigFromEnv(),
		NATSURL:         os.Getenv("NATS_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		IssueServiceURL: os.Getenv("ISSUE_SERVICE_URL"),
		IssueToken:      os.Getenv("ISSUE_SERVICE_TOKEN"),
		TemplatesPath:   os.Getenv("BOARD_TEMPLATES"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
		ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
