package metrics

import (
	"fmt"
	"net/http"

	"contrib.go.opencensus.io/exporter/prometheus"
	logging "github.com/ipfs/go-log/v2"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opencensus.io/stats/view"
)

var log = logging.Logger("metrics")

// Exporter returns a handler serving the dealbot views, the Go runtime and
// the process stats in the prometheus text format. Each call uses its own
// registry.
func Exporter(namespace string) (http.Handler, error) {
	if err := view.Register(DefaultViews...); err != nil {
		return nil, fmt.Errorf("registering metric views: %w", err)
	}

	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.NewExporter(prometheus.Options{
		Registry:  registry,
		Namespace: namespace,
		OnError: func(err error) {
			log.Warnw("collecting metrics", "err", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	return exporter, nil
}
