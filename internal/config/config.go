package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	RiotAPIKey string
	DBPath     string
	ServerPort string
	LogLevel   string

	// Number of recent ranked matches pulled per player.
	MatchCount int

	// Match queue tuning. Worker count stays well under the Riot
	// development limits (20 req/s, 100 req per 2 min).
	MatchWorkers      int
	VisibilityTimeout time.Duration
	MaxReceiveCount   int
	PollInterval      time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		RiotAPIKey:        getEnv("RIOT_API_KEY", ""),
		DBPath:            getEnv("DB_PATH", "rewind.db"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		MatchCount:        getEnvInt("MATCH_COUNT", 10),
		MatchWorkers:      getEnvInt("MATCH_WORKERS", 4),
		VisibilityTimeout: getEnvDuration("QUEUE_VISIBILITY_TIMEOUT", 60*time.Second),
		MaxReceiveCount:   getEnvInt("QUEUE_MAX_RECEIVES", 5),
		PollInterval:      getEnvDuration("QUEUE_POLL_INTERVAL", 500*time.Millisecond),
	}

	if cfg.RiotAPIKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY is required")
	}
	if cfg.MatchCount <= 0 || cfg.MatchCount > 100 {
		return nil, fmt.Errorf("MATCH_COUNT must be between 1 and 100, got %d", cfg.MatchCount)
	}
	if cfg.MatchWorkers <= 0 {
		return nil, fmt.Errorf("MATCH_WORKERS must be positive, got %d", cfg.MatchWorkers)
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("match_count", cfg.MatchCount).
		Int("match_workers", cfg.MatchWorkers).
		Dur("visibility_timeout", cfg.VisibilityTimeout).
		Int("max_receives", cfg.MaxReceiveCount).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
