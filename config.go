package goToken

import (
	"errors"
	"math"
	"time"
)

// Config defines a public type used by goToken APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT            JWTConfig
	Session        SessionConfig
	Revocation     RevocationConfig
	NetworkBinding NetworkBindingConfig
	Security       SecurityConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ProductionMode bool
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by goToken APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	SigningKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RotationGrace time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration

	// KeyID and VerifyKeys enable a multi-key ring addressed by the kid
	// header. RootSecret with DerivedKeyIDs derives the whole hs256 ring
	// from one secret instead of shipping per-kid key material.
	KeyID         string
	VerifyKeys    map[string][]byte
	RootSecret    []byte
	DerivedKeyIDs []string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goToken APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix       string
	DefaultSessionTTL time.Duration
	SlidingExpiration bool
	JitterEnabled     bool
	JitterRange       time.Duration
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig defines a public type used by goToken APIs.
//
// RevocationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RevocationConfig struct {
	RedisPrefix string
}

// NetworkBindingConfig defines a public type used by goToken APIs.
//
// NetworkBindingConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NetworkBindingConfig struct {
	Enabled             bool
	EnforceNetworkMatch bool
	DetectNetworkChange bool
	EnforceClientMatch  bool
	DetectClientChange  bool
	AnomalyCooldown     time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by goToken APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	EnforceRotationSingleUse    bool
	EnforceRevocationFailClosed bool
	MaxClockSkew                time.Duration
}

// AuditConfig defines a public type used by goToken APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goToken APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Leeway:        10 * time.Second,
			RotationGrace: 30 * time.Second,
			MaxFutureIAT:  10 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix:       "ts",
			DefaultSessionTTL: 7 * 24 * time.Hour,
			SlidingExpiration: true,
			JitterEnabled:     true,
			JitterRange:       30 * time.Second,
		},
		Revocation: RevocationConfig{
			RedisPrefix: "rv",
		},
		NetworkBinding: NetworkBindingConfig{
			Enabled:             false,
			EnforceNetworkMatch: false,
			DetectNetworkChange: false,
			EnforceClientMatch:  false,
			DetectClientChange:  false,
			AnomalyCooldown:     5 * time.Minute,
		},
		Security: SecurityConfig{
			EnforceRotationSingleUse:    true,
			EnforceRevocationFailClosed: true,
			MaxClockSkew:                30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		ProductionMode: false,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.JWT.RootSecret = cloneBytes(cfg.JWT.RootSecret)
	if len(cfg.JWT.VerifyKeys) > 0 {
		keys := make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			keys[kid] = cloneBytes(key)
		}
		out.JWT.VerifyKeys = keys
	}
	if len(cfg.JWT.DerivedKeyIDs) > 0 {
		kids := make([]string, len(cfg.JWT.DerivedKeyIDs))
		copy(kids, cfg.JWT.DerivedKeyIDs)
		out.JWT.DerivedKeyIDs = kids
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < 10*c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be at least 10x AccessTTL")
	}

	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}

	usesDerivedRing := len(c.JWT.RootSecret) > 0
	if usesDerivedRing && c.JWT.SigningMethod != "hs256" {
		return errors.New("JWT RootSecret derivation requires hs256")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.SigningKey) == 0 {
		return errors.New("ed25519 requires SigningKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
		return errors.New("ed25519 requires PublicKey or VerifyKeys")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.SigningKey) == 0 && !usesDerivedRing {
		return errors.New("hs256 requires SigningKey")
	}

	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}
	if c.JWT.RotationGrace < 0 {
		return errors.New("JWT RotationGrace must be >= 0")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return errors.New("JWT MaxFutureIAT must be >= 0")
	}

	// Session
	if c.Session.DefaultSessionTTL <= 0 {
		return errors.New("Session DefaultSessionTTL must be > 0")
	}
	if c.Session.JitterRange < 0 {
		return errors.New("Session JitterRange must be >= 0")
	}
	if c.Session.JitterRange > time.Duration((math.MaxInt64-1)/2) {
		return errors.New("Session JitterRange is too large")
	}
	if c.Session.JitterEnabled && c.Session.JitterRange <= 0 {
		return errors.New("Session JitterRange must be > 0 when JitterEnabled is true")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	// Security
	if !c.Security.EnforceRotationSingleUse {
		return errors.New("EnforceRotationSingleUse must be true")
	}
	if !c.Security.EnforceRevocationFailClosed {
		return errors.New("EnforceRevocationFailClosed must be true")
	}
	if c.Security.MaxClockSkew < 0 {
		return errors.New("MaxClockSkew must be >= 0")
	}
	if c.Security.MaxClockSkew > 0 && c.JWT.Leeway > c.Security.MaxClockSkew {
		return errors.New("JWT Leeway must not exceed MaxClockSkew")
	}

	// Network binding
	if !c.NetworkBinding.Enabled {
		// disabled mode is valid regardless of per-signal toggles
	} else if !c.NetworkBinding.EnforceNetworkMatch &&
		!c.NetworkBinding.EnforceClientMatch &&
		!c.NetworkBinding.DetectNetworkChange &&
		!c.NetworkBinding.DetectClientChange {
		return errors.New("NetworkBinding must enable at least one enforce or detect option when enabled")
	}
	if c.NetworkBinding.AnomalyCooldown < 0 {
		return errors.New("NetworkBinding AnomalyCooldown must be >= 0")
	}

	if c.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.JWT.SigningMethod == "hs256" && !usesDerivedRing && len(c.JWT.SigningKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if !c.Audit.Enabled {
			return errors.New("ProductionMode requires Audit Enabled")
		}
	}

	return nil
}
