package internaldefs

import (
	goToken "github.com/Averix07/goToken"
)

// CounterDef defines a public type used by goToken APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goToken APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the token engine.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricIssueSuccess, Name: "gotoken_issue_success_total", Help: "Successful token issuances."},
	{ID: goToken.MetricIssueFailure, Name: "gotoken_issue_failure_total", Help: "Failed token issuances."},
	{ID: goToken.MetricVerifySuccess, Name: "gotoken_verify_success_total", Help: "Successful token verifications."},
	{ID: goToken.MetricVerifyFailure, Name: "gotoken_verify_failure_total", Help: "Failed token verifications."},
	{ID: goToken.MetricVerifyRevoked, Name: "gotoken_verify_revoked_total", Help: "Verifications denied for revoked tokens."},
	{ID: goToken.MetricRotateSuccess, Name: "gotoken_rotate_success_total", Help: "Successful token rotations."},
	{ID: goToken.MetricRotateFailure, Name: "gotoken_rotate_failure_total", Help: "Failed token rotations."},
	{ID: goToken.MetricRotateConflict, Name: "gotoken_rotate_conflict_total", Help: "Rotations lost to a concurrent rotation of the same predecessor."},
	{ID: goToken.MetricRevokeSuccess, Name: "gotoken_revoke_success_total", Help: "Successful token revocations."},
	{ID: goToken.MetricRevokeFailure, Name: "gotoken_revoke_failure_total", Help: "Failed token revocations."},
	{ID: goToken.MetricFamilySuperseded, Name: "gotoken_family_superseded_total", Help: "Refresh tokens denied for a superseded family version."},
	{ID: goToken.MetricNetworkMismatch, Name: "gotoken_network_mismatch_total", Help: "Detected network address mismatches."},
	{ID: goToken.MetricClientMismatch, Name: "gotoken_client_mismatch_total", Help: "Detected client context mismatches."},
	{ID: goToken.MetricBindingRejected, Name: "gotoken_binding_rejected_total", Help: "Requests rejected by network binding enforcement."},
	{ID: goToken.MetricSessionStarted, Name: "gotoken_session_started_total", Help: "Started sessions."},
	{ID: goToken.MetricSessionInvalidated, Name: "gotoken_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: goToken.MetricSessionExtended, Name: "gotoken_session_extended_total", Help: "Extended sessions."},
	{ID: goToken.MetricSessionInvalidatedAll, Name: "gotoken_session_invalidated_all_total", Help: "Subject-wide session invalidation operations."},
	{ID: goToken.MetricLedgerUnavailable, Name: "gotoken_ledger_unavailable_total", Help: "Operations failed closed on an unreachable revocation ledger."},
	{ID: goToken.MetricStoreUnavailable, Name: "gotoken_store_unavailable_total", Help: "Operations failed closed on an unreachable session store."},
	{ID: goToken.MetricCleanupRuns, Name: "gotoken_cleanup_runs_total", Help: "Completed ledger cleanup sweeps."},
}

// HistogramDefs is an exported constant or variable used by the token engine.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricVerifyLatency, Name: "gotoken_verify_latency_seconds", Help: "Verify latency histogram."},
	{ID: goToken.MetricRotateLatency, Name: "gotoken_rotate_latency_seconds", Help: "Rotate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the token engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the token engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
