package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics exposed by the curriculum manager.
type Metrics struct {
	LessonNumber      *prometheus.GaugeVec
	LessonTransitions *prometheus.CounterVec
	SmoothedReward    *prometheus.GaugeVec
	ResetsRequired    prometheus.Counter
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all curriculum metrics. Registration
// happens once per process; later calls return the shared instance.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			LessonNumber: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "curricula_lesson_number",
					Help: "Currently active lesson index per environment parameter",
				},
				[]string{"parameter"},
			),
			LessonTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "curricula_lesson_transitions_total",
					Help: "Total number of lesson advancements",
				},
				[]string{"parameter", "behavior"},
			),
			SmoothedReward: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "curricula_smoothed_reward",
					Help: "Smoothed reward measure used for reward-based completion criteria",
				},
				[]string{"parameter"},
			),
			ResetsRequired: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "curricula_resets_required_total",
					Help: "Total number of lesson advancements that required an environment reset",
				},
			),
		}
	})

	return sharedMetrics
}

// RecordLesson records the active lesson index for a parameter.
func (m *Metrics) RecordLesson(parameter string, lessonNum int) {
	m.LessonNumber.WithLabelValues(parameter).Set(float64(lessonNum))
}

// RecordTransition records a lesson advancement.
func (m *Metrics) RecordTransition(parameter, behavior string, requireReset bool) {
	m.LessonTransitions.WithLabelValues(parameter, behavior).Inc()
	if requireReset {
		m.ResetsRequired.Inc()
	}
}

// RecordSmoothedReward records the current smoothing accumulator value.
func (m *Metrics) RecordSmoothedReward(parameter string, value float64) {
	m.SmoothedReward.WithLabelValues(parameter).Set(value)
}
