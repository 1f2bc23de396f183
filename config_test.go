package goToken

import (
	"testing"
	"time"
)

func TestConfigValidateRules(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "baseline valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "access ttl zero invalid",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl below ratio invalid",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = 9 * c.JWT.AccessTTL
			},
			wantValid: false,
		},
		{
			name: "refresh ttl at ratio valid",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = 10 * c.JWT.AccessTTL
			},
			wantValid: true,
		},
		{
			name: "unsupported signing method invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "hs256 without key invalid",
			mutate: func(c *Config) {
				c.JWT.SigningKey = nil
			},
			wantValid: false,
		},
		{
			name: "ed25519 without keys invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.SigningKey = nil
				c.JWT.PublicKey = nil
			},
			wantValid: false,
		},
		{
			name: "root secret with ed25519 invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.RootSecret = []byte("0123456789abcdef0123456789abcdef")
			},
			wantValid: false,
		},
		{
			name: "root secret replaces hs256 key valid",
			mutate: func(c *Config) {
				c.JWT.SigningKey = nil
				c.JWT.RootSecret = []byte("0123456789abcdef0123456789abcdef")
			},
			wantValid: true,
		},
		{
			name: "leeway within clock skew valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 20 * time.Second
			},
			wantValid: true,
		},
		{
			name: "leeway exceeding clock skew invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: false,
		},
		{
			name: "leeway negative invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "rotation grace negative invalid",
			mutate: func(c *Config) {
				c.JWT.RotationGrace = -time.Second
			},
			wantValid: false,
		},
		{
			name: "max future iat negative invalid",
			mutate: func(c *Config) {
				c.JWT.MaxFutureIAT = -time.Second
			},
			wantValid: false,
		},
		{
			name: "session ttl zero invalid",
			mutate: func(c *Config) {
				c.Session.DefaultSessionTTL = 0
			},
			wantValid: false,
		},
		{
			name: "jitter enabled without range invalid",
			mutate: func(c *Config) {
				c.Session.JitterEnabled = true
				c.Session.JitterRange = 0
			},
			wantValid: false,
		},
		{
			name: "jitter enabled with range valid",
			mutate: func(c *Config) {
				c.Session.JitterEnabled = true
				c.Session.JitterRange = 30 * time.Second
			},
			wantValid: true,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled with buffer valid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 256
			},
			wantValid: true,
		},
		{
			name: "binding enabled without toggles invalid",
			mutate: func(c *Config) {
				c.NetworkBinding.Enabled = true
			},
			wantValid: false,
		},
		{
			name: "binding enabled with detect valid",
			mutate: func(c *Config) {
				c.NetworkBinding.Enabled = true
				c.NetworkBinding.DetectNetworkChange = true
			},
			wantValid: true,
		},
		{
			name: "binding toggles without enabled valid",
			mutate: func(c *Config) {
				c.NetworkBinding.EnforceNetworkMatch = true
			},
			wantValid: true,
		},
		{
			name: "anomaly cooldown negative invalid",
			mutate: func(c *Config) {
				c.NetworkBinding.Enabled = true
				c.NetworkBinding.DetectNetworkChange = true
				c.NetworkBinding.AnomalyCooldown = -time.Minute
			},
			wantValid: false,
		},
		{
			name: "clock skew negative invalid",
			mutate: func(c *Config) {
				c.Security.MaxClockSkew = -time.Second
			},
			wantValid: false,
		},
		{
			name: "clock skew zero disables leeway cap valid",
			mutate: func(c *Config) {
				c.Security.MaxClockSkew = 0
				c.JWT.Leeway = 2 * time.Minute
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tokenTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}
