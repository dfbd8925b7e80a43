package internaldefs

import (
	accounts "github.com/clipstream/accounts"
)

// CounterDef binds a metric ID to its exported name and help text.
type CounterDef struct {
	ID   accounts.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram metric ID to its exported name and
// help text.
type HistogramDef struct {
	ID   accounts.MetricID
	Name string
	Help string
}

// CounterDefs is the shared name table both exporters render from.
var CounterDefs = []CounterDef{
	{ID: accounts.MetricRegisterSuccess, Name: "accounts_register_success_total", Help: "Successful registrations."},
	{ID: accounts.MetricRegisterDuplicate, Name: "accounts_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: accounts.MetricRegisterUploadFailure, Name: "accounts_register_upload_failure_total", Help: "Registrations failed at media upload."},
	{ID: accounts.MetricLoginSuccess, Name: "accounts_login_success_total", Help: "Successful login attempts."},
	{ID: accounts.MetricLoginFailure, Name: "accounts_login_failure_total", Help: "Failed login attempts."},
	{ID: accounts.MetricLoginRateLimited, Name: "accounts_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: accounts.MetricRefreshSuccess, Name: "accounts_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: accounts.MetricRefreshFailure, Name: "accounts_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: accounts.MetricRefreshReuseDetected, Name: "accounts_refresh_reuse_detected_total", Help: "Rotated-out refresh tokens presented again."},
	{ID: accounts.MetricRefreshRateLimited, Name: "accounts_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: accounts.MetricLogout, Name: "accounts_logout_total", Help: "Logout operations."},
	{ID: accounts.MetricPasswordChangeSuccess, Name: "accounts_password_change_success_total", Help: "Successful password changes."},
	{ID: accounts.MetricPasswordChangeInvalidCurrent, Name: "accounts_password_change_invalid_current_total", Help: "Password changes rejected on the current-password check."},
	{ID: accounts.MetricGuardRejected, Name: "accounts_guard_rejected_total", Help: "Requests rejected by the auth guard."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: accounts.MetricAuthenticateLatency, Name: "accounts_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bounds of the fixed latency buckets, as
// rendered in exposition output.
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

// HistogramBoundSuffix mirrors HistogramBounds with names safe for
// instrument identifiers.
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

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// histogram expositions require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
