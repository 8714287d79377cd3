// Package metrics exposes prometheus collectors for rendering and resource lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "imagevariants"

var (
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Total number of variant renders by outcome",
		},
		[]string{"outcome"},
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Variant render latency distribution",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)

	ResourcesReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_released_total",
			Help:      "Derived resources handed back to storage",
		},
	)

	VariantsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "variants_live",
			Help:      "Variants currently held by the registry",
		},
	)

	PresetWarmups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preset_warmups_total",
			Help:      "Preset variants rendered by the warm-up worker",
		},
		[]string{"preset", "status"},
	)
)

const (
	OutcomeOK         = "ok"
	OutcomeUnreadable = "unreadable"
	OutcomeFailed     = "failed"
)

// RenderObserved records one finished render.
func RenderObserved(outcome string, d time.Duration) {
	RendersTotal.WithLabelValues(outcome).Inc()
	RenderDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func ResourceReleased() {
	ResourcesReleased.Inc()
}
