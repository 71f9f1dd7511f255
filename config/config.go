// config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"numerai-reports/apiclient"
	"numerai-reports/rules"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	DatabaseURL        string
	APIURL             string
	ServiceToken       string
	ListenAddr         string
	SyncCron           string
	SyncLookbackRounds int
	ReputationWindow   int
	Schedule           rules.Schedule
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		APIURL:       getEnv("NUMERAI_API_URL", apiclient.DefaultBaseURL),
		ServiceToken: os.Getenv("REPORTS_SERVICE_TOKEN"),
		ListenAddr:   getEnv("LISTEN_ADDR", ":5300"),
		SyncCron:     getEnv("SYNC_CRON", "1 20 * * *"),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	var err error
	if cfg.SyncLookbackRounds, err = getEnvInt("SYNC_LOOKBACK_ROUNDS", 5); err != nil {
		return nil, err
	}
	if cfg.ReputationWindow, err = getEnvInt("REPUTATION_WINDOW", 20); err != nil {
		return nil, err
	}

	if cfg.Schedule, err = rules.LoadFile(os.Getenv("RULES_FILE")); err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if raw := os.Getenv("STAKING_BONUS_FROM"); raw != "" {
		from, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("STAKING_BONUS_FROM must be an integer: %w", err)
		}
		if cfg.Schedule, err = cfg.Schedule.WithStakingBonusFrom(from); err != nil {
			return nil, fmt.Errorf("STAKING_BONUS_FROM: %w", err)
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}
