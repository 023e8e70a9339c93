package srquick

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "srquick"

type clientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newClientMetrics(registerer prometheus.Registerer) (*clientMetrics, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "API calls by operation and normalized outcome",
		},
		[]string{"operation", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "API call latency including envelope decoding",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
		},
		[]string{"operation"},
	)
	var err error
	if requests, err = registerCollector(registerer, requests); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(registerer, duration); err != nil {
		return nil, err
	}
	return &clientMetrics{requests: requests, duration: duration}, nil
}

// registerCollector registers collector, reusing an identical collector
// registered by an earlier client.
func registerCollector[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

func (metrics *clientMetrics) observe(operation string, outcome string, elapsed time.Duration) {
	if metrics == nil {
		return
	}
	metrics.requests.WithLabelValues(operation, outcome).Inc()
	metrics.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
