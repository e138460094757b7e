// Copyright 2025 Certen Protocol
//
// Prometheus Metrics
// Service-level counters for the verification API, exposed on the metrics
// address.

package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CertificatesVerified counts certificates that passed every rule.
	CertificatesVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eigenda_validator_certificates_verified_total",
		Help: "Number of certificates that passed verification",
	})

	// CertificatesRejected counts rejections, labelled by the failing rule.
	CertificatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eigenda_validator_certificates_rejected_total",
		Help: "Number of certificates rejected, by failing rule",
	}, []string{"rule"})

	// VerificationDuration observes end-to-end verification latency,
	// including proof retrieval.
	VerificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eigenda_validator_verification_duration_seconds",
		Help:    "End-to-end certificate verification latency",
		Buckets: prometheus.DefBuckets,
	})

	// RPCErrors counts failed parent-chain RPC calls.
	RPCErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eigenda_validator_rpc_errors_total",
		Help: "Number of failed Ethereum RPC calls",
	})
)

// ObserveDuration records a verification latency sample.
func ObserveDuration(start time.Time) {
	VerificationDuration.Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("[Metrics] Serving on %s", addr)
	return http.ListenAndServe(addr, mux)
}
