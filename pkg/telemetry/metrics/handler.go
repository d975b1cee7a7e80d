package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the collector's registry in the OpenMetrics format when
// the scraper asks for it. Scrape counts are recorded in the same registry
// as promhttp_metric_handler_requests_total.
func (c *Collector) Handler() http.Handler {
	h := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
		Registry:          c.registry,
	})
	return promhttp.InstrumentMetricHandler(c.registry, h)
}
