// Package observability provides the logger factory and the prometheus
// observer of the rendering engine.
package observability

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-content-placeholders/rendering"
)

const defaultNamespace = "placeholders"

// Metrics exports render and cache events to prometheus.
type Metrics struct {
	itemLookups        *prometheus.CounterVec
	placeholderLookups *prometheus.CounterVec
	renders            *prometheus.CounterVec
	renderDuration     *prometheus.HistogramVec
}

var _ rendering.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors on reg, or on the default registerer
// when reg is nil. Collectors already registered under the same names are
// reused.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	itemLookups, err := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "item_cache_lookups_total",
		Help:      "Content item output cache lookups by plugin and result.",
	}, []string{"plugin", "result"}))
	if err != nil {
		return nil, err
	}
	placeholderLookups, err := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "placeholder_cache_lookups_total",
		Help:      "Merged placeholder output cache lookups by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	renders, err := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "item_renders_total",
		Help:      "Content items rendered by plugin and outcome.",
	}, []string{"plugin", "outcome"}))
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "item_render_duration_seconds",
		Help:      "Latency of content item plugin renders.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"plugin"})
	if err := reg.Register(duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register render histogram: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("register render histogram: %w", err)
		}
		duration = existing
	}

	return &Metrics{
		itemLookups:        itemLookups,
		placeholderLookups: placeholderLookups,
		renders:            renders,
		renderDuration:     duration,
	}, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register counter: %w", err)
	}
	return c, nil
}

func result(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func (m *Metrics) ItemCacheLookup(plugin string, hit bool) {
	if m == nil {
		return
	}
	m.itemLookups.WithLabelValues(plugin, result(hit)).Inc()
}

func (m *Metrics) PlaceholderCacheLookup(hit bool) {
	if m == nil {
		return
	}
	m.placeholderLookups.WithLabelValues(result(hit)).Inc()
}

func (m *Metrics) ItemRendered(plugin string, outcome rendering.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(plugin, string(outcome)).Inc()
	m.renderDuration.WithLabelValues(plugin).Observe(elapsed.Seconds())
}
