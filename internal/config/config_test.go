package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadDefaultsToIndianShopTime(t *testing.T) {
	t.Setenv("SHOP_TIMEZONE", "")

	cfg := Load()
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != DefaultTimezone {
		t.Fatalf("expected %s, got %s", DefaultTimezone, loc)
	}
}

func TestLoadRejectsInvalidRetrySettings(t *testing.T) {
	t.Setenv("TX_MAX_ATTEMPTS", "0")
	t.Setenv("TX_BASE_BACKOFF_MS", "abc")
	t.Setenv("TX_MAX_BACKOFF_MS", "250")

	cfg := Load()
	if cfg.TxMaxAttempts != 8 {
		t.Fatalf("expected default attempts, got %d", cfg.TxMaxAttempts)
	}
	if cfg.TxBaseBackoff != 15*time.Millisecond {
		t.Fatalf("expected default base backoff, got %s", cfg.TxBaseBackoff)
	}
	if cfg.TxMaxBackoff != 250*time.Millisecond {
		t.Fatalf("expected 250ms max backoff, got %s", cfg.TxMaxBackoff)
	}
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := Config{ShopTimezone: "Mars/Olympus"}
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	if got := NewLogger("loud").GetLevel(); got != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", got)
	}
	if got := NewLogger("debug").GetLevel(); got != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", got)
	}
}
