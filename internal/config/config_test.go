package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CHAT_MODEL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ChatModel != "openai/gpt-4o-mini" {
		t.Fatalf("expected default chat model, got %s", cfg.ChatModel)
	}
	if cfg.ClinicTimezone != "America/Sao_Paulo" {
		t.Fatalf("expected default timezone, got %s", cfg.ClinicTimezone)
	}
	if cfg.DedupWindow != 15*time.Second {
		t.Fatalf("expected default dedup window, got %s", cfg.DedupWindow)
	}
	if cfg.ReadingPause != 1500*time.Millisecond {
		t.Fatalf("expected default reading pause, got %s", cfg.ReadingPause)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("OPENROUTER_BASE_URL", "http://localhost:9999/v1")
	t.Setenv("CONTEXT_CACHE_TTL", "30s")
	t.Setenv("READING_PAUSE", "0s")
	t.Setenv("REDIS_TLS", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.OpenRouterBaseURL != "http://localhost:9999/v1" {
		t.Fatalf("expected base url override, got %s", cfg.OpenRouterBaseURL)
	}
	if cfg.ContextCacheTTL != 30*time.Second {
		t.Fatalf("expected cache ttl override, got %s", cfg.ContextCacheTTL)
	}
	if cfg.ReadingPause != 0 {
		t.Fatalf("expected reading pause override, got %s", cfg.ReadingPause)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls override")
	}
}
