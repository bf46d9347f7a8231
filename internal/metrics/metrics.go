// Package metrics exposes Prometheus instruments for the quality client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sweeney/rpc-quality-client/internal/client"
	"github.com/sweeney/rpc-quality-client/internal/quality"
)

var (
	Checkpoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rpcdqm",
		Subsystem: "client",
		Name:      "checkpoints_total",
		Help:      "Total period boundaries and session ends handled",
	})

	Fills = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rpcdqm",
		Subsystem: "client",
		Name:      "fills_total",
		Help:      "Total quality fills performed",
	})

	FillsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpcdqm",
		Subsystem: "client",
		Name:      "fills_skipped_total",
		Help:      "Checkpoints that did not fill, by reason",
	}, []string{"reason"})

	FillDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rpcdqm",
		Subsystem: "client",
		Name:      "fill_duration_seconds",
		Help:      "Time spent classifying and writing one fill",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// OverviewFraction mirrors the overview cells of the latest fill.
	OverviewFraction = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rpcdqm",
		Subsystem: "client",
		Name:      "overview_fraction",
		Help:      "Fraction of detector units per state in each region",
	}, []string{"region", "state"})

	Chambers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rpcdqm",
		Subsystem: "client",
		Name:      "chambers",
		Help:      "Detector units per state in each region at the latest fill",
	}, []string{"region", "state"})

	MQTTQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rpcdqm",
		Subsystem: "mqtt",
		Name:      "queued_messages",
		Help:      "Messages waiting for the broker connection",
	})

	MQTTDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rpcdqm",
		Subsystem: "mqtt",
		Name:      "dropped_messages_total",
		Help:      "Messages lost because the offline queue was full",
	})
)

// RecordCheckpoint counts one checkpoint and, for fills, updates the gauges.
func RecordCheckpoint(rep *client.Report, skip client.SkipReason) {
	Checkpoints.Inc()
	if rep == nil {
		if skip != client.SkipNone {
			FillsSkipped.WithLabelValues(string(skip)).Inc()
		}
		return
	}
	Fills.Inc()
	FillDuration.Observe(rep.Elapsed.Seconds())
	Observe(rep)
}

// Observe sets the overview and chamber gauges from a report.
func Observe(rep *client.Report) {
	for _, r := range rep.Regions {
		region := r.Region.String()
		for _, s := range quality.States {
			OverviewFraction.WithLabelValues(region, s.String()).Set(r.Fractions[s-1])
			Chambers.WithLabelValues(region, s.String()).Set(float64(r.Counts.Of(s)))
		}
	}
}
