package goToken

import (
	"fmt"
	"strings"
	"time"
)

/*
====================================
CONFIG LINT
====================================
*/

// LintSeverity defines a public type used by goToken APIs.
//
// LintSeverity instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintSeverity int

const (
	// LintLow marks an advisory finding with no direct security impact.
	LintLow LintSeverity = iota
	// LintMedium marks a finding that weakens the deployment posture.
	LintMedium
	// LintHigh marks a contradictory or dangerous combination.
	LintHigh
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s LintSeverity) String() string {
	switch s {
	case LintLow:
		return "low"
	case LintMedium:
		return "medium"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning defines a public type used by goToken APIs.
//
// LintWarning instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings defines a public type used by goToken APIs.
//
// LintWarnings instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintWarnings []LintWarning

// Codes describes the codes operation and its observable behavior.
//
// Codes may return an error when input validation, dependency calls, or security checks fail.
// Codes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws LintWarnings) Codes() []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

// BySeverity describes the byseverity operation and its observable behavior.
//
// BySeverity may return an error when input validation, dependency calls, or security checks fail.
// BySeverity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	out := make(LintWarnings, 0, len(ws))
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError describes the aserror operation and its observable behavior.
//
// AsError may return an error when input validation, dependency calls, or security checks fail.
// AsError does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws LintWarnings) AsError(min LintSeverity) error {
	flagged := ws.BySeverity(min)
	if len(flagged) == 0 {
		return nil
	}
	return fmt.Errorf("config lint: %d finding(s) at or above %s severity: %s",
		len(flagged), min, strings.Join(flagged.Codes(), ", "))
}

// Lint describes the lint operation and its observable behavior.
//
// Lint may return an error when input validation, dependency calls, or security checks fail.
// Lint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Lint reports posture findings for configs that pass Validate but weaken
// the deployment. It never rejects; pair it with AsError to gate startup.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings

	warn := func(code string, severity LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: severity, Message: fmt.Sprintf(format, args...)})
	}

	if c.JWT.Leeway > time.Minute {
		warn("leeway_large", LintMedium, "JWT.Leeway %s accepts tokens well past their expiry", c.JWT.Leeway)
	}
	if c.JWT.AccessTTL > 15*time.Minute {
		warn("access_ttl_long", LintMedium, "JWT.AccessTTL %s extends the revocation-blind window for bearer tokens", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		warn("refresh_ttl_long", LintMedium, "JWT.RefreshTTL %s keeps stolen refresh tokens usable for over a month", c.JWT.RefreshTTL)
	}
	if c.JWT.RotationGrace > 2*time.Minute {
		warn("rotation_grace_large", LintMedium, "JWT.RotationGrace %s extends the replay window after rotation", c.JWT.RotationGrace)
	}
	if c.JWT.SigningMethod == "hs256" {
		warn("signing_hs256", LintLow, "shared-secret signing lets every verifier mint tokens; prefer ed25519")
		if len(c.JWT.RootSecret) == 0 && len(c.JWT.SigningKey) < 32 {
			warn("weak_hs256_key", LintHigh, "HS256 key is %d bytes; use at least 32", len(c.JWT.SigningKey))
		}
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.VerifyKeys) == 0 {
		warn("single_verify_key", LintLow, "no verify key ring; rotating the signing key invalidates every outstanding token")
	}
	if !c.Session.SlidingExpiration && c.Session.DefaultSessionTTL < c.JWT.RefreshTTL {
		warn("session_shorter_than_refresh", LintHigh, "session records expire before their refresh tokens; rotation stops working mid-lifetime")
	}
	if !c.Session.JitterEnabled {
		warn("jitter_disabled", LintLow, "session expirations cluster without jitter and can stampede Redis")
	}
	if c.NetworkBinding.Enabled &&
		!c.NetworkBinding.EnforceNetworkMatch && !c.NetworkBinding.EnforceClientMatch &&
		(c.NetworkBinding.DetectNetworkChange || c.NetworkBinding.DetectClientChange) {
		warn("detect_without_enforce", LintLow, "network binding only detects; anomalies are recorded but never rejected")
	}
	if !c.Audit.Enabled {
		warn("audit_disabled", LintMedium, "no audit trail for issue, rotate, and revoke decisions")
	}

	return ws
}
