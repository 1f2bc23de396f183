package goToken

import "time"

type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	KeyEntropyClass  string
	KeyRingSize      int

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	TTLRatio   float64

	RotationSingleUse     bool
	RevocationFailClosed  bool
	SessionSliding        bool
	NetworkBindingEnabled bool
	NetworkBindingEnforce bool

	AuditEnabled   bool
	MetricsEnabled bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config

	report := SecurityReport{
		ProductionMode:   cfg.ProductionMode,
		SigningAlgorithm: cfg.JWT.SigningMethod,
		KeyEntropyClass:  keyEntropyClass(cfg.JWT),
		KeyRingSize:      keyRingSize(cfg.JWT),

		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,

		RotationSingleUse:     cfg.Security.EnforceRotationSingleUse,
		RevocationFailClosed:  cfg.Security.EnforceRevocationFailClosed,
		SessionSliding:        cfg.Session.SlidingExpiration,
		NetworkBindingEnabled: cfg.NetworkBinding.Enabled,
		NetworkBindingEnforce: cfg.NetworkBinding.Enabled && (cfg.NetworkBinding.EnforceNetworkMatch || cfg.NetworkBinding.EnforceClientMatch),

		AuditEnabled:   cfg.Audit.Enabled,
		MetricsEnabled: cfg.Metrics.Enabled,
	}
	if cfg.JWT.AccessTTL > 0 {
		report.TTLRatio = float64(cfg.JWT.RefreshTTL) / float64(cfg.JWT.AccessTTL)
	}
	return report
}

func keyEntropyClass(cfg JWTConfig) string {
	switch {
	case cfg.SigningMethod == "ed25519":
		return "asymmetric-ed25519"
	case len(cfg.RootSecret) > 0:
		return "derived-hkdf"
	case len(cfg.SigningKey) >= 32:
		return "symmetric-strong"
	default:
		return "symmetric-weak"
	}
}

func keyRingSize(cfg JWTConfig) int {
	size := len(cfg.VerifyKeys)
	if len(cfg.RootSecret) > 0 {
		size = len(cfg.DerivedKeyIDs)
	}
	if size == 0 {
		size = 1
	}
	return size
}
