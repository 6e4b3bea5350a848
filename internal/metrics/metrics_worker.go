package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DescriptorFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundlegen_descriptor_failed",
			Help: "Number of times a plugin descriptor has failed to build",
		},
		[]string{"plugin", "error_type"},
	)

	DescriptorCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bundlegen_descriptor_count",
			Help: "Total number of plugin descriptors built",
		},
	)

	DescriptorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bundlegen_descriptor_duration_seconds",
			Help:    "Descriptor build duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"plugin"},
	)

	ViolationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundlegen_violation_count",
			Help: "Number of validation violations reported by pre-pass stages",
		},
		[]string{"severity"},
	)
)

// DescriptorBuilt records a successful descriptor build started at start.
func DescriptorBuilt(plugin string, start time.Time) {
	DescriptorCount.Inc()
	DescriptorDuration.WithLabelValues(plugin).Observe(time.Since(start).Seconds())
}

func DescriptorBuildFailed(plugin, errorType string) {
	DescriptorCount.Inc()
	DescriptorFailed.WithLabelValues(plugin, errorType).Inc()
}
