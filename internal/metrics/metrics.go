// Package metrics exports billing telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer records billing operation outcomes.
type Observer interface {
	// RecordOperation tracks one billing call; result is "ok" or an error kind.
	RecordOperation(operation, result string, duration time.Duration)
	// RecordSettlement counts settled money by pay method.
	RecordSettlement(method string, cents int64)
	// RecordExpired counts pending orders cancelled by the sweeper.
	RecordExpired(n int)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) RecordOperation(string, string, time.Duration) {}
func (Nop) RecordSettlement(string, int64)                {}
func (Nop) RecordExpired(int)                             {}

// PrometheusObserver exports billing metrics.
type PrometheusObserver struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	settled    *prometheus.CounterVec
	expired    prometheus.Counter
}

// NewPrometheusObserver registers billing collectors on reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "nyanpass"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "operations_total",
			Help:      "Billing operations by result.",
		}, []string{"operation", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "operation_duration_seconds",
			Help:      "Latency of billing operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "settled_cents_total",
			Help:      "Net amount of settled orders in cents.",
		}, []string{"method"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "expired_orders_total",
			Help:      "Pending orders cancelled after expiry.",
		}),
	}
	collectors := []prometheus.Collector{o.operations, o.latency, o.settled, o.expired}
	for i, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				collectors[i] = are.ExistingCollector
				continue
			}
			return nil, fmt.Errorf("register billing metric: %w", err)
		}
	}
	if existing, ok := collectors[0].(*prometheus.CounterVec); ok {
		o.operations = existing
	}
	if existing, ok := collectors[1].(*prometheus.HistogramVec); ok {
		o.latency = existing
	}
	if existing, ok := collectors[2].(*prometheus.CounterVec); ok {
		o.settled = existing
	}
	if existing, ok := collectors[3].(prometheus.Counter); ok {
		o.expired = existing
	}
	return o, nil
}

func (o *PrometheusObserver) RecordOperation(operation, result string, duration time.Duration) {
	if o == nil {
		return
	}
	o.operations.WithLabelValues(operation, result).Inc()
	o.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (o *PrometheusObserver) RecordSettlement(method string, cents int64) {
	if o == nil || cents < 0 {
		return
	}
	o.settled.WithLabelValues(method).Add(float64(cents))
}

func (o *PrometheusObserver) RecordExpired(n int) {
	if o == nil || n <= 0 {
		return
	}
	o.expired.Add(float64(n))
}
