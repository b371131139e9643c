package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

const namespace = "shorts_planner"

// RefreshMetrics records refresh pipeline telemetry in Prometheus.
type RefreshMetrics struct {
	gatherer prometheus.Gatherer

	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	adapterFetches  *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	records         prometheus.Gauge
	lastUpdated     prometheus.Gauge
	duplicates      prometheus.Counter
	dropped         prometheus.Counter
}

// NewRefreshMetrics registers the collectors on a fresh registry together with the Go and process collectors.
func NewRefreshMetrics() *RefreshMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &RefreshMetrics{
		gatherer: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Finished refresh runs by trigger and result.",
		}, []string{"trigger", "result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of refresh runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		adapterFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_fetches_total",
			Help:      "Source adapter fetches by outcome.",
		}, []string{"adapter", "outcome"}),
		adapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_fetch_duration_seconds",
			Help:      "Source adapter fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"adapter"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Records in the published snapshot.",
		}),
		lastUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_last_updated_timestamp_seconds",
			Help:      "Unix time the published snapshot was written.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_duplicates_total",
			Help:      "Records merged away as duplicates.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_dropped_total",
			Help:      "Raw items dropped during normalization.",
		}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.adapterFetches, m.adapterDuration, m.records, m.lastUpdated, m.duplicates, m.dropped)
	return m
}

func (m *RefreshMetrics) ObserveRun(run model.RefreshRun) {
	m.runs.WithLabelValues(string(run.Trigger), string(run.Result)).Inc()
	m.runDuration.Observe(run.Duration().Seconds())
	m.duplicates.Add(float64(run.DuplicateCount))
	m.dropped.Add(float64(run.DroppedCount))
}

func (m *RefreshMetrics) ObserveAdapter(adapter string, outcome model.FetchOutcome, elapsed time.Duration) {
	m.adapterFetches.WithLabelValues(adapter, outcome.Kind.String()).Inc()
	m.adapterDuration.WithLabelValues(adapter).Observe(elapsed.Seconds())
}

func (m *RefreshMetrics) ObserveSnapshot(snapshot *model.CacheSnapshot) {
	if snapshot == nil {
		return
	}
	m.records.Set(float64(snapshot.RecordCount))
	if !snapshot.LastUpdated.IsZero() {
		m.lastUpdated.Set(float64(snapshot.LastUpdated.Unix()))
	}
}

func (m *RefreshMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
