package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ledgerHex = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	ownerHex  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEDGER_ADDRESS", ledgerHex)
	t.Setenv("OWNER_ADDRESS", ownerHex)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerAddress != common.HexToAddress(ledgerHex) {
		t.Fatalf("unexpected ledger address %s", cfg.LedgerAddress.Hex())
	}
	if cfg.ShutdownPeriod != defaultShutdownDelay || cfg.IdempotencyTTL != defaultIdempotencyTTL {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if !cfg.IsDev() || cfg.Address() != ":8080" || cfg.UnitDecimals != 18 || !cfg.RunMigrations {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LEDGER_ADDRESS", ledgerHex)
	t.Setenv("OWNER_ADDRESS", ownerHex)
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "60")
	t.Setenv("TRANSFER_RATE_LIMIT", "0")
	t.Setenv("CALLER_CREDENTIALS", ownerHex+"=$2a$04$abcdefghijklmnopqrstuv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.IdempotencyTTL != time.Minute {
		t.Fatalf("unexpected durations: %v %v", cfg.ShutdownPeriod, cfg.IdempotencyTTL)
	}
	if cfg.TransferRateLimit != 0 {
		t.Fatalf("expected rate limit disabled, got %d", cfg.TransferRateLimit)
	}
	if got := cfg.CallerCredentials[common.HexToAddress(ownerHex)]; got != "$2a$04$abcdefghijklmnopqrstuv" {
		t.Fatalf("unexpected credential hash %q", got)
	}
}

func TestLoadRequiresAddresses(t *testing.T) {
	t.Setenv("LEDGER_ADDRESS", "")
	t.Setenv("OWNER_ADDRESS", ownerHex)
	if _, err := Load(); err == nil {
		t.Fatal("expected missing LEDGER_ADDRESS error")
	}

	t.Setenv("LEDGER_ADDRESS", "not-an-address")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid LEDGER_ADDRESS error")
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("LEDGER_ADDRESS", ledgerHex)
	t.Setenv("OWNER_ADDRESS", ownerHex)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected DATABASE_URL error outside development")
	}
}

func TestParseCredentialsRejectsGarbage(t *testing.T) {
	if _, err := ParseCredentials("nope"); err == nil {
		t.Fatal("expected error for entry without hash")
	}
	if _, err := ParseCredentials("0x123=hash"); err == nil {
		t.Fatal("expected error for short address")
	}
	got, err := ParseCredentials(" , ")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %v %v", got, err)
	}
}
