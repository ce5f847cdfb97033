package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SLOT_MINUTES", "")
	t.Setenv("MODIFY_CUTOFF", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("EMAIL_PROVIDER", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.SlotMinutes != 30 {
		t.Fatalf("expected 30 minute slots, got %d", cfg.SlotMinutes)
	}
	if cfg.HorizonDays != 14 {
		t.Fatalf("expected 14 day horizon, got %d", cfg.HorizonDays)
	}
	if cfg.ModifyCutoff != 2*time.Hour {
		t.Fatalf("expected 2h cutoff, got %s", cfg.ModifyCutoff)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard CORS default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.EmailProvider != "stub" {
		t.Fatalf("expected stub email provider, got %s", cfg.EmailProvider)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue by default")
	}
	if cfg.GuardServerCounter {
		t.Fatalf("expected server-side guard counter disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("WIDGET_SIGNING_SECRET", "s3cret")
	t.Setenv("SLOT_MINUTES", "15")
	t.Setenv("MODIFY_CUTOFF", "90m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("EMAIL_PROVIDER", " SES ")
	t.Setenv("GUARD_SERVER_COUNTER", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.WidgetSigningSecret != "s3cret" {
		t.Fatalf("expected signing secret override")
	}
	if cfg.SlotLength() != 15*time.Minute {
		t.Fatalf("expected 15m slots, got %s", cfg.SlotLength())
	}
	if cfg.ModifyCutoff != 90*time.Minute {
		t.Fatalf("expected 90m cutoff, got %s", cfg.ModifyCutoff)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.RateLimitRPS)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected normalized provider, got %q", cfg.EmailProvider)
	}
	if !cfg.GuardServerCounter {
		t.Fatalf("expected guard server counter enabled")
	}
}

func TestSlotLengthFallback(t *testing.T) {
	cfg := &Config{SlotMinutes: 0}
	if cfg.SlotLength() != 30*time.Minute {
		t.Fatalf("expected fallback to 30m, got %s", cfg.SlotLength())
	}
}
