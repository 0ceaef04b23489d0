package process

import (
	"context"
	"time"

	"ewintr.nl/ytstats/config"
	"ewintr.nl/ytstats/fetcher"
	"ewintr.nl/ytstats/metrics"
	"ewintr.nl/ytstats/model"
	"ewintr.nl/ytstats/ratelimit"
	"ewintr.nl/ytstats/storage"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Pipeline runs one sync: fetch the records, find their videos, look the
// videos up and write the statistics back.
type Pipeline struct {
	cfg             config.Config
	repo            storage.RecordRepository
	metadataFetcher fetcher.MetadataFetcher
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

func NewPipeline(cfg config.Config, repo storage.RecordRepository, metadataFetcher fetcher.MetadataFetcher, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:             cfg,
		repo:            repo,
		metadataFetcher: metadataFetcher,
		metrics:         m,
		logger:          logger,
	}
}

func (p *Pipeline) Run(ctx context.Context) (*model.RunResult, error) {
	start := time.Now()
	result, err := p.run(ctx)

	status := "ok"
	if err != nil {
		status = "failed"
	}
	p.metrics.Runs.WithLabelValues(status).Inc()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())

	return result, err
}

func (p *Pipeline) run(ctx context.Context) (*model.RunResult, error) {
	result := &model.RunResult{
		RunID:  uuid.New().String(),
		Failed: map[string]error{},
	}
	logger := p.logger.With(slog.String("run", result.RunID))
	logger.Info("starting sync", slog.String("mode", p.cfg.RateLimitMode))

	schema, err := p.repo.Schema(ctx)
	if err != nil {
		return result, &StageError{Stage: StageSchema, Err: err}
	}
	fields, err := ResolveFields(p.cfg.Fields, schema)
	if err != nil {
		return result, &StageError{Stage: StageSchema, Err: err}
	}

	queryLimiter := p.newLimiter("query", p.cfg.RateLimits.Query, logger)
	updateLimiter := p.newLimiter("update", p.cfg.RateLimits.Update, logger)

	records, err := fetcher.NewRecordFetcher(p.repo, queryLimiter, p.cfg.FetchRetry, logger).FetchAll(ctx, fields.VideoURL)
	if err != nil {
		return result, &StageError{Stage: StageFetch, Err: err}
	}
	result.Fetched = len(records)
	p.metrics.RecordsFetched.Add(float64(len(records)))

	refs, dropped := fetcher.ExtractReferences(records, fields.VideoURL.Name, logger)
	batches := fetcher.Split(refs, fetcher.MaxBatchSize)
	result.Dropped = dropped
	result.Batches = len(batches)
	p.metrics.RecordsDropped.Add(float64(dropped))
	logger.Info("extracted video ids", slog.Int("valid", len(refs)), slog.Int("dropped", dropped), slog.Int("batches", len(batches)))

	mds, err := fetcher.NewResolver(p.metadataFetcher, p.cfg.ResolveRetry, logger).Resolve(ctx, batches)
	if err != nil {
		return result, &StageError{Stage: StageResolve, Err: err}
	}
	result.Resolved = len(mds)
	p.metrics.VideosResolved.Add(float64(len(mds)))

	plans := Plan(refs, mds, logger)
	result.Planned = len(plans)
	p.metrics.VideosMissing.Add(float64(len(refs) - len(plans)))

	opts := UpdateOptions{
		UpdateTitle:  p.cfg.UpdateTitle,
		SetThumbnail: p.cfg.SetThumbnail,
	}
	result.Updated, result.Failed = NewUpdater(p.repo, updateLimiter, p.cfg.UpdateRetry, fields, opts, logger).Apply(ctx, plans)
	p.metrics.Updates.WithLabelValues("ok").Add(float64(len(result.Updated)))
	p.metrics.Updates.WithLabelValues("failed").Add(float64(len(result.Failed)))

	logger.Info("finished sync", slog.Int("fetched", result.Fetched), slog.Int("updated", len(result.Updated)), slog.Int("failed", len(result.Failed)))
	return result, nil
}

func (p *Pipeline) newLimiter(name string, cfg ratelimit.Config, logger *slog.Logger) *ratelimit.Limiter {
	l := ratelimit.New(name, cfg)
	l.OnThrottle(func(job ratelimit.Job, err error, delay time.Duration) {
		p.metrics.Throttled.WithLabelValues(name).Inc()
		logger.Warn("rate limited, rescheduling", slog.String("limiter", name), slog.String("job", job.String()), slog.Duration("delay", delay))
	})
	return l
}
