package goIdentity

import (
	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
)

// MetricID identifies a counter or histogram in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricExchangeSuccess        = internalmetrics.MetricExchangeSuccess
	MetricExchangeAuthFailure    = internalmetrics.MetricExchangeAuthFailure
	MetricExchangeFormatFailure  = internalmetrics.MetricExchangeFormatFailure
	MetricExchangeUnsupported    = internalmetrics.MetricExchangeUnsupported
	MetricExchangeBackendFailure = internalmetrics.MetricExchangeBackendFailure
	MetricExchangeTimeout        = internalmetrics.MetricExchangeTimeout
	MetricPasswordMismatch       = internalmetrics.MetricPasswordMismatch
	MetricPasswordExpired        = internalmetrics.MetricPasswordExpired
	MetricOTPIssued              = internalmetrics.MetricOTPIssued
	MetricOTPVerified            = internalmetrics.MetricOTPVerified
	MetricOTPFailure             = internalmetrics.MetricOTPFailure
	MetricTOTPSuccess            = internalmetrics.MetricTOTPSuccess
	MetricTOTPSkewed             = internalmetrics.MetricTOTPSkewed
	MetricTOTPFailure            = internalmetrics.MetricTOTPFailure
	MetricOpaqueIssued           = internalmetrics.MetricOpaqueIssued
	MetricOpaqueExpired          = internalmetrics.MetricOpaqueExpired
	MetricJWTIssued              = internalmetrics.MetricJWTIssued
	MetricJWTRejected            = internalmetrics.MetricJWTRejected
	MetricJTIRevoked             = internalmetrics.MetricJTIRevoked
	MetricEventPublishFailure    = internalmetrics.MetricEventPublishFailure
	MetricEventDropped           = internalmetrics.MetricEventDropped
	MetricAttemptsThrottled      = internalmetrics.MetricAttemptsThrottled
	MetricExchangeLatency        = internalmetrics.MetricExchangeLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
