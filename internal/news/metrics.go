package news

import "github.com/prometheus/client_golang/prometheus"

var (
	ingestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulletin_ingest_runs_total",
			Help: "Ingest runs by result (ok, failed).",
		},
		[]string{"result"},
	)
	ingestRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulletin_ingest_records_total",
			Help: "Ingested records by outcome (created, updated, failed).",
		},
		[]string{"outcome"},
	)
	ingestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulletin_ingest_duration_seconds",
			Help:    "Duration of ingest runs.",
			Buckets: prometheus.DefBuckets,
		},
	)
	ingestLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulletin_ingest_last_success_timestamp_seconds",
			Help: "Unix time of the last run that fetched a batch.",
		},
	)
)

func init() {
	prometheus.MustRegister(ingestRuns, ingestRecords, ingestDuration, ingestLastSuccess)
}

func observe(r *BatchReport) {
	ingestDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	if r.Err != nil {
		ingestRuns.WithLabelValues("failed").Inc()
		return
	}
	ingestRuns.WithLabelValues("ok").Inc()
	ingestLastSuccess.Set(float64(r.FinishedAt.Unix()))
	ingestRecords.WithLabelValues("created").Add(float64(r.Created))
	ingestRecords.WithLabelValues("updated").Add(float64(r.Updated))
	ingestRecords.WithLabelValues("failed").Add(float64(r.Failed))
}
