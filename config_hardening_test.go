package goToken

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidateProductionRejectsWeakHS256Key(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.JWT.SigningKey = []byte("weak-key")

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "256 bits") {
		t.Fatalf("expected weak HS256 key rejection, got %v", err)
	}
}

func TestConfigValidateProductionRejectsLongAccessTTL(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.JWT.AccessTTL = 30 * time.Minute
	cfg.JWT.RefreshTTL = 300 * time.Minute

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "AccessTTL <= 15m") {
		t.Fatalf("expected long access TTL rejection, got %v", err)
	}
}

func TestConfigValidateProductionRejectsLongRefreshTTL(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.JWT.AccessTTL = 15 * time.Minute
	cfg.JWT.RefreshTTL = 31 * 24 * time.Hour

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "RefreshTTL <= 30d") {
		t.Fatalf("expected long refresh TTL rejection, got %v", err)
	}
}

func TestConfigValidateProductionRequiresAudit(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.ProductionMode = true
	cfg.Audit.Enabled = false

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "Audit Enabled") {
		t.Fatalf("expected audit requirement, got %v", err)
	}
}

func TestConfigValidateProductionAcceptsHardenedConfig(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 1024

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected hardened production config to pass, got %v", err)
	}
}

func TestConfigValidateProductionDerivedRingSkipsRawKeyCheck(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.JWT.SigningKey = nil
	cfg.JWT.RootSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.DerivedKeyIDs = []string{"2024-01", "2024-07"}
	cfg.JWT.KeyID = "2024-07"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected derived-ring production config to pass, got %v", err)
	}
}

func TestConfigValidateDevModeAllowsRelaxedLimits(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.ProductionMode = false
	cfg.JWT.AccessTTL = 30 * time.Minute
	cfg.JWT.RefreshTTL = 300 * time.Minute
	cfg.JWT.SigningKey = []byte("short-dev-key-16")
	cfg.Audit.Enabled = false

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected relaxed dev config to pass, got %v", err)
	}
}
