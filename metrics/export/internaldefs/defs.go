package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricExchangeSuccess, Name: "goidentity_exchange_success_total", Help: "Successful exchanges."},
	{ID: goIdentity.MetricExchangeAuthFailure, Name: "goidentity_exchange_auth_failure_total", Help: "Exchanges rejected by a verification or restriction check."},
	{ID: goIdentity.MetricExchangeFormatFailure, Name: "goidentity_exchange_format_failure_total", Help: "Exchanges rejected for a malformed credential."},
	{ID: goIdentity.MetricExchangeUnsupported, Name: "goidentity_exchange_unsupported_total", Help: "Exchanges requested for an unregistered pair."},
	{ID: goIdentity.MetricExchangeBackendFailure, Name: "goidentity_exchange_backend_failure_total", Help: "Exchanges failed by a store or backend error."},
	{ID: goIdentity.MetricExchangeTimeout, Name: "goidentity_exchange_timeout_total", Help: "Exchanges cut short by deadline or cancellation."},
	{ID: goIdentity.MetricPasswordMismatch, Name: "goidentity_password_mismatch_total", Help: "Password or secret mismatches."},
	{ID: goIdentity.MetricPasswordExpired, Name: "goidentity_password_expired_total", Help: "Passwords rejected as expired or below the minimum version."},
	{ID: goIdentity.MetricOTPIssued, Name: "goidentity_otp_issued_total", Help: "One-time passwords issued."},
	{ID: goIdentity.MetricOTPVerified, Name: "goidentity_otp_verified_total", Help: "One-time passwords verified."},
	{ID: goIdentity.MetricOTPFailure, Name: "goidentity_otp_failure_total", Help: "Failed one-time password verifications."},
	{ID: goIdentity.MetricTOTPSuccess, Name: "goidentity_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: goIdentity.MetricTOTPSkewed, Name: "goidentity_totp_skewed_total", Help: "TOTP codes accepted from an adjacent time step."},
	{ID: goIdentity.MetricTOTPFailure, Name: "goidentity_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: goIdentity.MetricOpaqueIssued, Name: "goidentity_opaque_issued_total", Help: "Opaque tokens issued."},
	{ID: goIdentity.MetricOpaqueExpired, Name: "goidentity_opaque_expired_total", Help: "Expired opaque tokens presented."},
	{ID: goIdentity.MetricJWTIssued, Name: "goidentity_jwt_issued_total", Help: "Signed tokens issued."},
	{ID: goIdentity.MetricJWTRejected, Name: "goidentity_jwt_rejected_total", Help: "Signed tokens rejected."},
	{ID: goIdentity.MetricJTIRevoked, Name: "goidentity_jti_revoked_total", Help: "Token identifiers revoked."},
	{ID: goIdentity.MetricEventPublishFailure, Name: "goidentity_event_publish_failure_total", Help: "Generation events the publisher failed to deliver."},
	{ID: goIdentity.MetricEventDropped, Name: "goidentity_event_dropped_total", Help: "Generation events dropped by dispatcher backpressure."},
	{ID: goIdentity.MetricAttemptsThrottled, Name: "goidentity_attempts_throttled_total", Help: "Verifications refused after too many failed attempts."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricExchangeLatency, Name: "goidentity_exchange_latency_seconds", Help: "Exchange latency histogram."},
}

// HistogramBounds are the upper bounds of the in-process latency buckets.
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

// HistogramBoundValues are HistogramBounds in seconds, without +Inf.
var HistogramBoundValues = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies up to eight raw bucket counts into a fixed array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
