package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const job = "ytstats"

type Metrics struct {
	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	RecordsFetched prometheus.Counter
	RecordsDropped prometheus.Counter
	VideosResolved prometheus.Counter
	VideosMissing  prometheus.Counter
	Updates        *prometheus.CounterVec
	Throttled      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytstats_runs_total",
				Help: "Total number of sync runs, labeled by outcome.",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ytstats_run_duration_seconds",
				Help:    "Duration of sync runs in seconds.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		RecordsFetched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ytstats_records_fetched_total",
				Help: "Total number of database records that link to a video.",
			},
		),
		RecordsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ytstats_records_dropped_total",
				Help: "Total number of records skipped for a missing or unrecognized video url.",
			},
		),
		VideosResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ytstats_videos_resolved_total",
				Help: "Total number of videos found through the YouTube API.",
			},
		),
		VideosMissing: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ytstats_videos_missing_total",
				Help: "Total number of referenced videos the YouTube API did not return.",
			},
		),
		Updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytstats_record_updates_total",
				Help: "Total number of record writes, labeled by result.",
			},
			[]string{"result"},
		),
		Throttled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytstats_throttled_total",
				Help: "Total number of calls put back after a rate limit answer, labeled by limiter.",
			},
			[]string{"limiter"},
		),
	}

	reg.MustRegister(
		m.Runs,
		m.RunDuration,
		m.RecordsFetched,
		m.RecordsDropped,
		m.VideosResolved,
		m.VideosMissing,
		m.Updates,
		m.Throttled,
	)

	return m
}

// Push sends everything in g to a Prometheus pushgateway. One-shot runs
// do not live long enough to be scraped.
func Push(ctx context.Context, url string, g prometheus.Gatherer) error {
	return push.New(url, job).Gatherer(g).PushContext(ctx)
}
