package mockbackend

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newServerMetrics(registerer prometheus.Registerer) (*serverMetrics, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srquick_mock_requests_total",
			Help: "Requests served by the mock backend",
		},
		[]string{"route", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "srquick_mock_request_duration_seconds",
			Help:    "Mock backend request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	requests, err := reuseRegistered(registerer, requests)
	if err != nil {
		return nil, err
	}
	duration, err = reuseRegistered(registerer, duration)
	if err != nil {
		return nil, err
	}
	return &serverMetrics{requests: requests, duration: duration}, nil
}

// reuseRegistered returns the collector already registered under the same
// descriptor, so several backends can share one registry.
func reuseRegistered[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
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

func (metrics *serverMetrics) observe(route string, status int, elapsed time.Duration) {
	metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	metrics.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}
