package pathfinding

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - Prometheus-метрики поиска пути.
// Исходы "exhausted" и "budget_exceeded" считаются раздельно, чтобы было видно,
// когда пора поднимать лимит итераций, а когда цель просто недостижима.
//
// Метрики:
// * pathfinding_searches_total{outcome} - counter
// * pathfinding_expansions - histogram раскрытых узлов на поиск
// * pathfinding_last_waypoints - gauge точек в последнем упрощённом пути
type Metrics struct {
	searches   *prometheus.CounterVec
	expansions prometheus.Histogram
	waypoints  prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// reg == nil - дефолтный регистр Prometheus.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathfinding",
			Name:      "searches_total",
			Help:      "Число запросов пути по исходу.",
		}, []string{"outcome"}),
		expansions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pathfinding",
			Name:      "expansions",
			Help:      "Число раскрытых узлов за один поиск.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		waypoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pathfinding",
			Name:      "last_waypoints",
			Help:      "Количество точек в последнем упрощённом пути.",
		}),
	}
	reg.MustRegister(m.searches, m.expansions, m.waypoints)
	return m
}

func (m *Metrics) observe(r Result) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(r.Outcome.String()).Inc()
	m.expansions.Observe(float64(r.Expansions))
}

// ObserveWaypoints фиксирует длину упрощённого пути
func (m *Metrics) ObserveWaypoints(n int) {
	if m == nil {
		return
	}
	m.waypoints.Set(float64(n))
}
