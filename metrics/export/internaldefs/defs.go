package internaldefs

import (
	goVerify "github.com/MrEthical07/goVerify"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goVerify.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goVerify.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goVerify.MetricCaptchaIssued, Name: "goverify_captcha_issued_total", Help: "Captchas issued and rendered."},
	{ID: goVerify.MetricCaptchaRenderFailed, Name: "goverify_captcha_render_failed_total", Help: "Captcha renders that failed."},
	{ID: goVerify.MetricCaptchaMismatch, Name: "goverify_captcha_mismatch_total", Help: "Verification requests rejected for a wrong or absent captcha."},
	{ID: goVerify.MetricVerificationRequested, Name: "goverify_verification_requested_total", Help: "Verification requests that passed the captcha."},
	{ID: goVerify.MetricVerificationSent, Name: "goverify_verification_sent_total", Help: "Verification codes delivered and stored."},
	{ID: goVerify.MetricIdentityNotFound, Name: "goverify_identity_not_found_total", Help: "Verification requests for identities missing from the directory."},
	{ID: goVerify.MetricInvalidIdentity, Name: "goverify_invalid_identity_total", Help: "Verification requests with an identity that is neither email nor phone."},
	{ID: goVerify.MetricChannelUnavailable, Name: "goverify_channel_unavailable_total", Help: "Verification requests for a channel without a transport."},
	{ID: goVerify.MetricDeliveryFailed, Name: "goverify_delivery_failed_total", Help: "Verification codes the notifier failed to deliver."},
	{ID: goVerify.MetricVerificationSuccess, Name: "goverify_verification_success_total", Help: "Successful verification checks."},
	{ID: goVerify.MetricVerificationFailure, Name: "goverify_verification_failure_total", Help: "Failed verification checks."},
	{ID: goVerify.MetricVerificationExpired, Name: "goverify_verification_expired_total", Help: "Verification checks against an expired code."},
	{ID: goVerify.MetricIdentityRequired, Name: "goverify_identity_required_total", Help: "Session-bound calls without a session identity."},
	{ID: goVerify.MetricSessionUnavailable, Name: "goverify_session_unavailable_total", Help: "Session facts backend failures."},
	{ID: goVerify.MetricAttestationIssued, Name: "goverify_attestation_issued_total", Help: "Attestation tokens issued."},
	{ID: goVerify.MetricChallengesSwept, Name: "goverify_challenges_swept_total", Help: "Expired challenges removed by the janitor."},
}

var HistogramDefs = []HistogramDef{
	{ID: goVerify.MetricSendLatency, Name: "goverify_send_latency_seconds", Help: "Notifier send latency histogram."},
}

// HistogramBounds are the "le" labels matching goVerify.HistogramUpperBounds.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside
// instrument names.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

const (
	AuditDroppedName = "goverify_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// NormalizeBuckets copies raw into a fixed-size bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
