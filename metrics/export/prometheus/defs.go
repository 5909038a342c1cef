package prometheus

import (
	caseAuth "github.com/MrEthical07/caseAuth"
)

type counterDef struct {
	id   caseAuth.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{id: caseAuth.MetricLoginSuccess, name: "caseauth_login_success_total", help: "Logins that established a session or reached the MFA gate."},
	{id: caseAuth.MetricLoginFailure, name: "caseauth_login_failure_total", help: "Denied logins."},
	{id: caseAuth.MetricUnknownUser, name: "caseauth_unknown_user_total", help: "Login attempts for logins with no active user."},
	{id: caseAuth.MetricDirectoryRejected, name: "caseauth_directory_rejected_total", help: "Directory rejections without local fallback."},
	{id: caseAuth.MetricDirectoryUnavailable, name: "caseauth_directory_unavailable_total", help: "Directory calls that gave no answer."},
	{id: caseAuth.MetricDirectoryFallback, name: "caseauth_directory_fallback_total", help: "Directory rejections retried against local hashes."},
	{id: caseAuth.MetricLocalRejected, name: "caseauth_local_rejected_total", help: "Wrong passwords against local hashes."},
	{id: caseAuth.MetricMFARequired, name: "caseauth_mfa_required_total", help: "Sessions stopped at the MFA gate."},
	{id: caseAuth.MetricSessionEstablished, name: "caseauth_session_established_total", help: "Sessions bound to a principal."},
	{id: caseAuth.MetricDefaultCaseAssigned, name: "caseauth_default_case_assigned_total", help: "Users assigned the default case on login."},
	{id: caseAuth.MetricRedirectRejected, name: "caseauth_redirect_rejected_total", help: "Post-login hints replaced by the index URL."},
	{id: caseAuth.MetricExternalLoginSuccess, name: "caseauth_external_login_success_total", help: "Sessions established from external identity tokens."},
	{id: caseAuth.MetricExternalLoginFailure, name: "caseauth_external_login_failure_total", help: "Rejected external identity logins."},
}

const (
	latencyName = "caseauth_login_latency_seconds"
	latencyHelp = "Login latency including session establishment."
	droppedName = "caseauth_audit_dropped_total"
	droppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// Upper bounds of the engine's non-cumulative latency buckets, +Inf excluded.
var latencyBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// cumulativeBuckets converts engine buckets into the cumulative form the
// client library expects and returns the total count.
func cumulativeBuckets(raw []uint64) (map[float64]uint64, uint64) {
	out := make(map[float64]uint64, len(latencyBounds))
	var running uint64
	for i, bound := range latencyBounds {
		if i < len(raw) {
			running += raw[i]
		}
		out[bound] = running
	}
	if len(raw) > len(latencyBounds) {
		for _, v := range raw[len(latencyBounds):] {
			running += v
		}
	}
	return out, running
}
