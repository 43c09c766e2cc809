package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "pocketmoney.db" {
		t.Errorf("db path = %q, want pocketmoney.db", cfg.DBPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.PINRateLimit != 10 || cfg.PINRateWindow != 60 {
		t.Errorf("pin rate = %d/%ds, want 10/60s", cfg.PINRateLimit, cfg.PINRateWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POCKETMONEY_PORT", "9090")
	t.Setenv("POCKETMONEY_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadRejectsBadRateLimit(t *testing.T) {
	t.Setenv("POCKETMONEY_PIN_RATE_LIMIT", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero rate limit, got nil")
	}
}
