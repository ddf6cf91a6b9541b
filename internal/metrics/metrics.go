// Package metrics owns the Prometheus exposition endpoint for the
// server binary.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Version string
}

type Provider struct {
	reg *prometheus.Registry
}

// Init builds the exposition provider. Server-only collectors live in
// a private registry; the handler also gathers the default registry,
// which carries the shared instrumentation and the runtime collectors.
func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stacube_server_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version"},
	)
	reg.MustRegister(build)
	v := cfg.Version
	if v == "" {
		v = "dev"
	}
	build.WithLabelValues(v).Set(1)

	return &Provider{reg: reg}
}

func (p *Provider) Handler() http.Handler {
	g := prometheus.Gatherers{p.reg, prometheus.DefaultGatherer}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
