package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics публикует состояние очередей как GaugeFunc.
//
// Метрики:
// * control_agents - агенты, приславшие статус
// * control_commands_pending - команды во всех очередях
func RegisterMetrics(reg prometheus.Registerer, s *Service) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "control",
			Name:      "agents",
			Help:      "Число агентов, приславших статус.",
		}, func() float64 { return float64(s.board.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "control",
			Name:      "commands_pending",
			Help:      "Команды, ожидающие агентов.",
		}, func() float64 { return float64(s.queue.Total()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
