package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "RELAY_URL", "PING_INTERVAL_SEC", "STRICT_SYNC", "MATCH_HISTORY_LIMIT"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 3000 || cfg.ListenAddr() != ":3000" {
		t.Fatalf("default port: %d", cfg.Port)
	}
	if !cfg.StrictSync || cfg.PingInterval != 25*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("RELAY_URL", "wss://damas.example/")
	t.Setenv("STRICT_SYNC", "false")
	t.Setenv("MATCH_HISTORY_LIMIT", "5")
	t.Setenv("PING_INTERVAL_SEC", "nope")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4100 || cfg.RelayURL != "wss://damas.example/" || cfg.StrictSync || cfg.MatchHistoryLimit != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PingInterval != 25*time.Second {
		t.Fatalf("malformed interval must keep the default, got %v", cfg.PingInterval)
	}
}

func TestLoadRejectsBadPortAndURL(t *testing.T) {
	t.Setenv("PORT", "abc")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad PORT")
	}
	t.Setenv("PORT", "")
	t.Setenv("RELAY_URL", "http://x")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-ws RELAY_URL")
	}
}
