package goToken

import (
	"crypto/ed25519"
	"crypto/rand"
	"time"
)

/*
====================================
CONFIG PRESETS
====================================
*/

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned config carries a freshly generated ed25519 keypair so it
// validates out of the box. The keypair is a development convenience only;
// production deployments must supply their own signing material.
func DefaultConfig() Config {
	cfg := defaultConfig()
	pub, priv := generateEd25519Pair()
	cfg.JWT.SigningKey = priv
	cfg.JWT.PublicKey = pub
	return cfg
}

// HighSecurityConfig describes the highsecurityconfig operation and its observable behavior.
//
// HighSecurityConfig may return an error when input validation, dependency calls, or security checks fail.
// HighSecurityConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The preset enables production mode, audit, strict IAT handling, and
// network binding with client enforcement. The generated keypair is a
// placeholder; replace it before deploying.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	pub, priv := generateEd25519Pair()
	cfg.JWT.SigningKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.JWT.Leeway = 5 * time.Second
	cfg.JWT.RotationGrace = 10 * time.Second
	cfg.JWT.RequireIAT = true
	cfg.JWT.MaxFutureIAT = time.Minute
	cfg.NetworkBinding.Enabled = true
	cfg.NetworkBinding.EnforceClientMatch = true
	cfg.NetworkBinding.DetectNetworkChange = true
	cfg.Security.MaxClockSkew = 10 * time.Second
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.ProductionMode = true
	return cfg
}

// HighThroughputConfig describes the highthroughputconfig operation and its observable behavior.
//
// HighThroughputConfig may return an error when input validation, dependency calls, or security checks fail.
// HighThroughputConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The preset trades verification cost for speed: symmetric signing, no
// latency histograms, wide expiry jitter, and an audit buffer that drops
// rather than blocks. The generated key is a placeholder; replace it
// before deploying.
func HighThroughputConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.SigningKey = randomKey(32)
	cfg.JWT.AccessTTL = 10 * time.Minute
	cfg.JWT.RefreshTTL = 48 * time.Hour
	cfg.Session.JitterRange = time.Minute
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 4096
	cfg.Audit.DropIfFull = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = false
	cfg.ProductionMode = true
	return cfg
}

func generateEd25519Pair() (ed25519.PublicKey, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic("goToken: ed25519 key generation failed: " + err.Error())
	}
	return pub, priv
}

func randomKey(n int) []byte {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		panic("goToken: random key generation failed: " + err.Error())
	}
	return key
}
