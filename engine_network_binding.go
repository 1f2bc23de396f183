package goToken

import (
	"context"

	"github.com/Averix07/goToken/internal"
	"github.com/Averix07/goToken/internal/flows"
)

func (e *Engine) networkBindingFlowDeps() flows.NetworkBindingDeps {
	return flows.NetworkBindingDeps{
		Config: flows.NetworkBindingConfig{
			Enabled:             e.config.NetworkBinding.Enabled,
			EnforceNetworkMatch: e.config.NetworkBinding.EnforceNetworkMatch,
			DetectNetworkChange: e.config.NetworkBinding.DetectNetworkChange,
			EnforceClientMatch:  e.config.NetworkBinding.EnforceClientMatch,
			DetectClientChange:  e.config.NetworkBinding.DetectClientChange,
		},
		NetworkAddressFromContext: func(ctx context.Context) string {
			return internal.NormalizeNetworkAddress(networkAddressFromContext(ctx))
		},
		ClientContextFromContext: clientContextFromContext,
		HashBindingValue:         internal.HashBindingValue,
		ShouldEmitBindingAnomaly: e.shouldEmitBindingAnomaly,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: func(ctx context.Context, eventType string, success bool, subjectID, sessionID string, err error, metadataBuilder func() map[string]string) {
			e.emitAudit(ctx, eventType, success, subjectID, sessionID, "", "", err, metadataBuilder)
		},
		EventNetworkAnomalyDetected: auditEventNetworkAnomalyDetected,
		EventNetworkBindingRejected: auditEventNetworkBindingRejected,
		MetricNetworkMismatch:       int(MetricNetworkMismatch),
		MetricClientMismatch:        int(MetricClientMismatch),
		MetricBindingRejected:       int(MetricBindingRejected),
		RejectedErr:                 ErrNetworkBindingRejected,
	}
}

// shouldEmitBindingAnomaly deduplicates detect-only anomaly events per session.
// A dedup store failure never suppresses the event.
func (e *Engine) shouldEmitBindingAnomaly(ctx context.Context, sessionID string) bool {
	window := e.config.NetworkBinding.AnomalyCooldown
	if e.sessionStore == nil || sessionID == "" || window <= 0 {
		return true
	}
	emit, err := e.sessionStore.ShouldEmitBindingAnomaly(ctx, sessionID, "detect", window)
	if err != nil {
		return true
	}
	return emit
}
