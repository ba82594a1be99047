package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg
	return reg
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	return New(reg)
}

var Module = fx.Module("metrics",
	fx.Provide(newRegistry),
	fx.Provide(newMetrics),
)
