package config

import (
	"testing"
	"time"
)

func setBase(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "DATABASE_URL", "REDIS_URL",
		"SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", "IDEMPOTENCY_TTL_SECONDS", "IDEMPOTENCY_TTL",
		"BANK_ID", "TOKEN_ID", "TOKEN_OWNER", "RATE_LIMIT_PER_MINUTE",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("CALLER_JWT_SECRET", "secret")
	t.Setenv("BANK_OWNER", "root")
}

func TestLoadDefaults(t *testing.T) {
	setBase(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BankID != "bank" || cfg.TokenID != "token" {
		t.Fatalf("unexpected ledger ids: %s %s", cfg.BankID, cfg.TokenID)
	}
	if cfg.TokenOwner != "root" {
		t.Fatalf("token owner should default to bank owner, got %q", cfg.TokenOwner)
	}
	if cfg.RateLimit != 120 {
		t.Fatalf("expected default rate limit 120, got %d", cfg.RateLimit)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("expected 24h idempotency ttl, got %s", cfg.IdempotencyTTL)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if !cfg.IsDev() {
		t.Fatalf("development env should be dev")
	}
}

func TestLoadRequiresSecretAndOwner(t *testing.T) {
	setBase(t)
	t.Setenv("CALLER_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without CALLER_JWT_SECRET")
	}

	setBase(t)
	t.Setenv("BANK_OWNER", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without BANK_OWNER")
	}
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	setBase(t)
	t.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/bank")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without REDIS_URL in production")
	}

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadDurations(t *testing.T) {
	setBase(t)
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", cfg.IdempotencyTTL)
	}

	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func TestLoadRejectsSharedLedgerID(t *testing.T) {
	setBase(t)
	t.Setenv("TOKEN_ID", "bank")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when ledgers share an id")
	}
}
