// Package metrics wraps the Prometheus collectors for suggestion lifecycle
// and API client activity. A nil *Collector is valid and records nothing.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the registered collectors.
type Collector struct {
	suggestionsRequested *prometheus.CounterVec
	suggestionOutcomes   *prometheus.CounterVec
	suggestionLatency    *prometheus.HistogramVec
	suggestionsShown     *prometheus.CounterVec

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInvalid  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses a
// private registry, which is handy in tests.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	if namespace == "" {
		namespace = "nextedit"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{}

	c.suggestionsRequested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggestion",
			Name:      "requests_total",
			Help:      "Total number of suggestion requests",
		},
		[]string{"provider"},
	)

	c.suggestionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggestion",
			Name:      "outcomes_total",
			Help:      "Terminal suggestion outcomes (accepted, rejected, ignored, failed, cancelled, not_found)",
		},
		[]string{"provider", "outcome"},
	)

	c.suggestionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "suggestion",
			Name:      "request_duration_seconds",
			Help:      "Time taken by the edit engine to produce a suggestion",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"provider", "result"},
	)

	c.suggestionsShown = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggestion",
			Name:      "shown_total",
			Help:      "Total number of times a suggestion was shown",
		},
		[]string{"provider"},
	)

	c.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	c.apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API round trip latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method"},
	)

	c.apiInvalid = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "invalid_responses_total",
			Help:      "Responses rejected by validation, by operation",
		},
		[]string{"operation"},
	)

	var err error
	if c.suggestionsRequested, err = register(reg, c.suggestionsRequested); err != nil {
		return nil, err
	}
	if c.suggestionOutcomes, err = register(reg, c.suggestionOutcomes); err != nil {
		return nil, err
	}
	if c.suggestionLatency, err = register(reg, c.suggestionLatency); err != nil {
		return nil, err
	}
	if c.suggestionsShown, err = register(reg, c.suggestionsShown); err != nil {
		return nil, err
	}
	if c.apiRequests, err = register(reg, c.apiRequests); err != nil {
		return nil, err
	}
	if c.apiLatency, err = register(reg, c.apiLatency); err != nil {
		return nil, err
	}
	if c.apiInvalid, err = register(reg, c.apiInvalid); err != nil {
		return nil, err
	}
	return c, nil
}

// register adds col to reg, reusing an identical collector that is already
// registered so several providers can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

func (c *Collector) SuggestionRequested(provider string) {
	if c == nil {
		return
	}
	c.suggestionsRequested.WithLabelValues(provider).Inc()
}

func (c *Collector) SuggestionOutcome(provider, outcome string) {
	if c == nil {
		return
	}
	c.suggestionOutcomes.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) SuggestionLatency(provider, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.suggestionLatency.WithLabelValues(provider, result).Observe(d.Seconds())
}

func (c *Collector) SuggestionShown(provider string) {
	if c == nil {
		return
	}
	c.suggestionsShown.WithLabelValues(provider).Inc()
}

// APIRequest records one round trip. A status of 0 means a transport failure.
func (c *Collector) APIRequest(method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.apiRequests.WithLabelValues(method, label).Inc()
	c.apiLatency.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Collector) InvalidResponse(operation string) {
	if c == nil {
		return
	}
	c.apiInvalid.WithLabelValues(operation).Inc()
}
