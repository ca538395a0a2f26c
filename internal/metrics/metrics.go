// Package metrics exports a run verdict as Prometheus gauges in the textfile
// collector format, so node_exporter can pick it up between runs.
package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/schema"
)

const namespace = "docseal"

type Collector struct {
	reg          *prometheus.Registry
	results      *prometheus.GaugeVec
	completeness prometheus.Gauge
	review       prometheus.Gauge
	nonDraft     prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		results: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evidence_results",
			Help:      "Validation rows of the last run by outcome.",
		}, []string{"outcome"}),
		completeness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "completeness_percent",
			Help:      "Share of validation rows that passed.",
		}),
		review: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "review_required",
			Help:      "1 when the last run ended in REVIEW_REQUIRED.",
		}),
		nonDraft: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "draft_noncompliant_schemas",
			Help:      "Schemas that do not declare draft-07.",
		}),
	}
	c.reg.MustRegister(c.results, c.completeness, c.review, c.nonDraft)
	return c
}

func (c *Collector) Observe(agg schema.AggregateReport) {
	c.results.WithLabelValues("valid").Set(float64(agg.ValidCount))
	c.results.WithLabelValues("invalid").Set(float64(agg.InvalidCount))
	c.results.WithLabelValues("missing").Set(float64(agg.MissingCount))
	c.completeness.Set(agg.CompletenessPercent)
	review := 0.0
	if agg.FinalStatus == schema.VerdictReviewRequired {
		review = 1
	}
	c.review.Set(review)
	c.nonDraft.Set(float64(len(agg.DraftEnforcement.NonCompliant)))
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// WriteTextfile replaces path atomically with the current gauge values.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return codes.Wrap(codes.IO, "create metrics directory", path, err)
	}
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return codes.Wrap(codes.IO, "write metrics textfile", path, err)
	}
	return nil
}
