package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	// Relay
	Port         int
	PingInterval time.Duration
	WriteTimeout time.Duration
	SendQueue    int

	// Client
	RelayURL   string
	PlayerName string
	StrictSync bool

	// Match recording
	RedisURL          string
	DatabaseURL       string
	MatchWebhookURL   string
	MatchSnapshotDir  string
	MatchHistoryLimit int
	MatchTTL          time.Duration

	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:              3000,
		PingInterval:      25 * time.Second,
		WriteTimeout:      5 * time.Second,
		SendQueue:         32,
		RelayURL:          "ws://localhost:3000/",
		PlayerName:        "Jogador",
		StrictSync:        true,
		MatchHistoryLimit: 20,
		MatchTTL:          24 * time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = n
	}
	if v := strings.TrimSpace(os.Getenv("PING_INTERVAL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PingInterval = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("WRITE_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WriteTimeout = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SEND_QUEUE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendQueue = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("RELAY_URL")); v != "" {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return nil, fmt.Errorf("invalid RELAY_URL %q", v)
		}
		cfg.RelayURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PLAYER_NAME")); v != "" {
		cfg.PlayerName = v
	}
	if v := strings.TrimSpace(os.Getenv("STRICT_SYNC")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StrictSync = b
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MatchWebhookURL = strings.TrimSpace(os.Getenv("MATCH_WEBHOOK_URL"))
	cfg.MatchSnapshotDir = strings.TrimSpace(os.Getenv("MATCH_SNAPSHOT_DIR"))
	if v := strings.TrimSpace(os.Getenv("MATCH_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MatchHistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MATCH_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MatchTTL = time.Duration(n) * time.Second
		}
	}

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	return cfg, nil
}

// ListenAddr is the relay bind address.
func (c *AppConfig) ListenAddr() string { return fmt.Sprintf(":%d", c.Port) }
