package internaldefs

import (
	"github.com/MrEthical07/accountcore"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   accountcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   accountcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: accountcore.MetricSignupSuccess, Name: "accountcore_signup_success_total", Help: "Newly created accounts."},
	{ID: accountcore.MetricSignupDuplicate, Name: "accountcore_signup_duplicate_total", Help: "Signups rejected because a verified account exists."},
	{ID: accountcore.MetricSignupResent, Name: "accountcore_signup_resent_total", Help: "Signups that re-issued a challenge for an unverified account."},
	{ID: accountcore.MetricChallengeIssued, Name: "accountcore_challenge_issued_total", Help: "Persisted verification challenges."},
	{ID: accountcore.MetricChallengeAttemptsExceeded, Name: "accountcore_challenge_attempts_exceeded_total", Help: "Challenge issues refused at the per-account ceiling."},
	{ID: accountcore.MetricChallengeReset, Name: "accountcore_challenge_reset_total", Help: "Operator challenge resets."},
	{ID: accountcore.MetricVerifySuccess, Name: "accountcore_verify_success_total", Help: "Successful code verifications."},
	{ID: accountcore.MetricVerifyFailure, Name: "accountcore_verify_failure_total", Help: "Rejected code verifications."},
	{ID: accountcore.MetricLoginSuccess, Name: "accountcore_login_success_total", Help: "Successful logins."},
	{ID: accountcore.MetricLoginFailure, Name: "accountcore_login_failure_total", Help: "Rejected logins."},
	{ID: accountcore.MetricPasswordUpgraded, Name: "accountcore_password_upgraded_total", Help: "Password hashes re-encoded at login."},
	{ID: accountcore.MetricSessionIssued, Name: "accountcore_session_issued_total", Help: "Minted session tokens."},
	{ID: accountcore.MetricSessionRejected, Name: "accountcore_session_rejected_total", Help: "Session tokens that failed validation."},
	{ID: accountcore.MetricLogout, Name: "accountcore_logout_total", Help: "Single-session logouts."},
	{ID: accountcore.MetricLogoutAll, Name: "accountcore_logout_all_total", Help: "Logout-all operations."},
	{ID: accountcore.MetricPasswordResetRequest, Name: "accountcore_password_reset_request_total", Help: "Password reset links issued."},
	{ID: accountcore.MetricPasswordResetSuccess, Name: "accountcore_password_reset_success_total", Help: "Completed password resets."},
	{ID: accountcore.MetricPasswordResetFailure, Name: "accountcore_password_reset_failure_total", Help: "Rejected password reset completions."},
	{ID: accountcore.MetricNotificationSent, Name: "accountcore_notification_sent_total", Help: "Delivered notifications."},
	{ID: accountcore.MetricNotificationFailed, Name: "accountcore_notification_failed_total", Help: "Notifications the channel failed to deliver."},
	{ID: accountcore.MetricNotificationDropped, Name: "accountcore_notification_dropped_total", Help: "Notifications dropped because the queue was full."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: accountcore.MetricValidateLatency, Name: "accountcore_validate_latency_seconds", Help: "Session validation latency."},
}

// HistogramBounds are the upper bounds of the engine's fixed buckets, in seconds.
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

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
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

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
