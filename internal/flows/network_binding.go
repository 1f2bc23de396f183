package flows

import (
	"context"
	"crypto/subtle"
)

// NetworkBindingSession is the slice of a session record the binding check reads.
type NetworkBindingSession struct {
	SessionID      string
	SubjectID      string
	NetworkAddress string
	ClientContext  string
}

// NetworkBindingConfig controls session-level network and client pinning.
type NetworkBindingConfig struct {
	Enabled             bool
	EnforceNetworkMatch bool
	DetectNetworkChange bool
	EnforceClientMatch  bool
	DetectClientChange  bool
}

// NetworkBindingDeps captures binding check dependencies.
type NetworkBindingDeps struct {
	Config                      NetworkBindingConfig
	NetworkAddressFromContext   func(context.Context) string
	ClientContextFromContext    func(context.Context) string
	HashBindingValue            func(string) [32]byte
	ShouldEmitBindingAnomaly    func(context.Context, string) bool
	MetricInc                   func(int)
	EmitAudit                   func(context.Context, string, bool, string, string, error, func() map[string]string)
	EventNetworkAnomalyDetected string
	EventNetworkBindingRejected string
	MetricNetworkMismatch       int
	MetricClientMismatch        int
	MetricBindingRejected       int
	RejectedErr                 error
}

// RunCheckNetworkBinding compares the caller's network address and client
// context against the session record. Enforced mismatches reject with the
// configured error; detect-only mismatches emit a deduplicated audit anomaly
// and let the call through.
func RunCheckNetworkBinding(ctx context.Context, sess NetworkBindingSession, deps NetworkBindingDeps) error {
	if !deps.Config.Enabled {
		return nil
	}

	netMismatch := false
	if deps.Config.EnforceNetworkMatch || deps.Config.DetectNetworkChange {
		stored, storedPresent := hashedBindingValue(sess.NetworkAddress, deps.HashBindingValue)
		current, currentPresent := hashedBindingValue(deps.NetworkAddressFromContext(ctx), deps.HashBindingValue)
		netMismatch = bindingValueMismatch(storedPresent, stored, currentPresent, current, deps.Config.EnforceNetworkMatch)
	}

	cliMismatch := false
	if deps.Config.EnforceClientMatch || deps.Config.DetectClientChange {
		stored, storedPresent := hashedBindingValue(sess.ClientContext, deps.HashBindingValue)
		current, currentPresent := hashedBindingValue(deps.ClientContextFromContext(ctx), deps.HashBindingValue)
		cliMismatch = bindingValueMismatch(storedPresent, stored, currentPresent, current, deps.Config.EnforceClientMatch)
	}

	if netMismatch {
		deps.MetricInc(deps.MetricNetworkMismatch)
	}
	if cliMismatch {
		deps.MetricInc(deps.MetricClientMismatch)
	}

	// Detect-only anomalies are deduplicated per session so a chatty client
	// does not flood the audit stream.
	if (netMismatch && deps.Config.DetectNetworkChange) || (cliMismatch && deps.Config.DetectClientChange) {
		if deps.ShouldEmitBindingAnomaly(ctx, sess.SessionID) {
			deps.EmitAudit(ctx, deps.EventNetworkAnomalyDetected, true, sess.SubjectID, sess.SessionID, nil, func() map[string]string {
				meta := map[string]string{}
				if netMismatch && deps.Config.DetectNetworkChange {
					meta["network_mismatch"] = "1"
				}
				if cliMismatch && deps.Config.DetectClientChange {
					meta["client_mismatch"] = "1"
				}
				return meta
			})
		}
	}

	if (netMismatch && deps.Config.EnforceNetworkMatch) || (cliMismatch && deps.Config.EnforceClientMatch) {
		deps.MetricInc(deps.MetricBindingRejected)
		deps.EmitAudit(ctx, deps.EventNetworkBindingRejected, false, sess.SubjectID, sess.SessionID, deps.RejectedErr, func() map[string]string {
			meta := map[string]string{}
			if netMismatch && deps.Config.EnforceNetworkMatch {
				meta["enforced_network_mismatch"] = "1"
			}
			if cliMismatch && deps.Config.EnforceClientMatch {
				meta["enforced_client_mismatch"] = "1"
			}
			return meta
		})
		return deps.RejectedErr
	}

	return nil
}

func hashedBindingValue(v string, hashFn func(string) [32]byte) ([32]byte, bool) {
	if v == "" {
		return [32]byte{}, false
	}
	return hashFn(v), true
}

// bindingValueMismatch treats absent values strictly under enforcement and
// leniently in detect mode, where two absent sides are simply unknown.
func bindingValueMismatch(storedPresent bool, storedHash [32]byte, currentPresent bool, currentHash [32]byte, enforce bool) bool {
	if enforce {
		if !storedPresent || !currentPresent {
			return true
		}
		return subtle.ConstantTimeCompare(storedHash[:], currentHash[:]) != 1
	}
	if !storedPresent && !currentPresent {
		return false
	}
	if !storedPresent || !currentPresent {
		return true
	}
	return subtle.ConstantTimeCompare(storedHash[:], currentHash[:]) != 1
}
