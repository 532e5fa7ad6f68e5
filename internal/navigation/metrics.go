package navigation

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/voxelnav/internal/world"
)

// RegisterWorldMetrics публикует размер мира как GaugeFunc: значения читаются
// из текущего снимка в момент сбора, без отдельного цикла обновления.
//
// Метрики:
// * world_cells - занятые ячейки
// * world_surfaces - поверхности
// * world_version - версия снимка
func RegisterWorldMetrics(reg prometheus.Registerer, store *world.Store) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "cells",
			Help:      "Число занятых ячеек в текущем снимке.",
		}, func() float64 { return float64(store.Snapshot().Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "surfaces",
			Help:      "Число поверхностей в текущем снимке.",
		}, func() float64 { return float64(store.Snapshot().SurfaceCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "version",
			Help:      "Версия текущего снимка мира.",
		}, func() float64 { return float64(store.Snapshot().Version()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
