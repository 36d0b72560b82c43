// Package metrics exposes prometheus instrumentation for stego operations
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"multicarrier-stego/carrier"
	"multicarrier-stego/crypto"
	"multicarrier-stego/stego"
)

const namespace = "stego"

// Metrics is safe to use as a nil pointer, in which case nothing is recorded
type Metrics struct {
	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	carrierBytes    *prometheus.CounterVec
	carrierFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Distribute and reassemble operations by outcome.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of distribute and reassemble operations.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"operation"}),
		carrierBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carrier_payload_bytes_total",
			Help:      "Frame bytes embedded into or extracted from carriers.",
		}, []string{"operation", "adapter"}),
		carrierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carrier_failures_total",
			Help:      "Carriers that could not be decoded or held no valid frame.",
		}, []string{"adapter"}),
	}
	reg.MustRegister(m.operations, m.duration, m.carrierBytes, m.carrierFailures)
	return m
}

// Result maps an operation error to a low-cardinality label
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, stego.ErrInvalidWeights):
		return "invalid_weights"
	case errors.Is(err, stego.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, carrier.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, crypto.ErrDecryptionFailed):
		return "decryption_failed"
	case errors.Is(err, stego.ErrMalformedFrame):
		return "malformed_frame"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Result(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddCarrierBytes(operation, adapter string, n int) {
	if m == nil {
		return
	}
	m.carrierBytes.WithLabelValues(operation, adapter).Add(float64(n))
}

func (m *Metrics) CarrierFailed(adapter string) {
	if m == nil {
		return
	}
	m.carrierFailures.WithLabelValues(adapter).Inc()
}
