package fetcher

import (
	"context"
	"fmt"
	"time"

	"ewintr.nl/ytstats/model"
	"ewintr.nl/ytstats/ratelimit"
	"ewintr.nl/ytstats/retry"
	"ewintr.nl/ytstats/storage"
	"golang.org/x/exp/slog"
)

const PageSize = 100

// VideoDomains are the substrings a URL field must contain for a record to
// be considered.
var VideoDomains = []string{"youtube.com", "youtu.be"}

// RecordFetcher pages through the database for records that link to a
// video.
type RecordFetcher struct {
	repo    storage.RecordRepository
	limiter *ratelimit.Limiter
	retry   retry.Config
	logger  *slog.Logger
}

func NewRecordFetcher(repo storage.RecordRepository, limiter *ratelimit.Limiter, retryCfg retry.Config, logger *slog.Logger) *RecordFetcher {
	return &RecordFetcher{
		repo:    repo,
		limiter: limiter,
		retry:   retryCfg,
		logger:  logger,
	}
}

// FetchAll returns every record whose URL field mentions one of the video
// domains. Any page that cannot be fetched fails the whole fetch, since a
// partial result has no reliable cursor to continue from.
func (f *RecordFetcher) FetchAll(ctx context.Context, urlField model.Field) ([]model.Record, error) {
	or := make([]storage.Condition, 0, len(VideoDomains))
	for _, domain := range VideoDomains {
		or = append(or, storage.Condition{
			Property: urlField.Name,
			Kind:     urlField.Kind,
			Contains: domain,
		})
	}

	records := []model.Record{}
	cursor := ""
	for pageNr := 1; ; pageNr++ {
		page, err := f.FetchPage(ctx, pageNr, storage.Query{
			Or:          or,
			StartCursor: cursor,
			PageSize:    PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("could not fetch page %d: %w", pageNr, err)
		}
		records = append(records, page.Records...)
		f.logger.Debug("fetched record page", slog.Int("page", pageNr), slog.Int("count", len(page.Records)), slog.Bool("more", page.HasMore))

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	f.logger.Info("fetched records", slog.Int("count", len(records)))
	return records, nil
}

func (f *RecordFetcher) FetchPage(ctx context.Context, pageNr int, q storage.Query) (storage.Page, error) {
	job := ratelimit.Job{ID: fmt.Sprintf("page %d", pageNr), Kind: "query"}

	var page storage.Page
	err := f.limiter.Schedule(ctx, job, func(ctx context.Context) error {
		return retry.Do(ctx, f.retry, storage.IsTransient, f.logRetry(job), func(ctx context.Context) error {
			var err error
			page, err = f.repo.Query(ctx, q)
			return err
		})
	})

	return page, err
}

func (f *RecordFetcher) logRetry(job ratelimit.Job) retry.Hook {
	return func(attempt int, err error, wait time.Duration) {
		f.logger.Warn("retrying query", slog.String("job", job.ID), slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.String("error", err.Error()))
	}
}
