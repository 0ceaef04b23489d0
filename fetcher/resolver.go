package fetcher

import (
	"context"
	"fmt"
	"time"

	"ewintr.nl/ytstats/model"
	"ewintr.nl/ytstats/retry"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Resolver looks up all batches at once. The videos endpoint charges quota
// per call, so batches are not throttled against each other.
type Resolver struct {
	metadataFetcher MetadataFetcher
	retry           retry.Config
	logger          *slog.Logger
}

func NewResolver(metadataFetcher MetadataFetcher, retryCfg retry.Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		metadataFetcher: metadataFetcher,
		retry:           retryCfg,
		logger:          logger,
	}
}

// Resolve returns the metadata of every video found, in batch order. A
// batch that fails for good cancels the others and fails the resolve.
func (r *Resolver) Resolve(ctx context.Context, batches []model.Batch) ([]model.VideoMetadata, error) {
	results := make([][]model.VideoMetadata, len(batches))

	g, gCtx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		batchNr, ids := i+1, batch.IDs()
		g.Go(func() error {
			var mds []model.VideoMetadata
			hook := func(attempt int, err error, wait time.Duration) {
				r.logger.Warn("retrying metadata batch", slog.Int("batch", batchNr), slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.String("error", err.Error()))
			}
			err := retry.Do(gCtx, r.retry, IsTransient, hook, func(ctx context.Context) error {
				var err error
				mds, err = r.metadataFetcher.FetchMetadata(ctx, ids)
				return err
			})
			if err != nil {
				return fmt.Errorf("batch %d: %w", batchNr, err)
			}

			r.logger.Debug("fetched metadata batch", slog.Int("batch", batchNr), slog.Int("requested", len(ids)), slog.Int("found", len(mds)))
			results[batchNr-1] = mds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.VideoMetadata
	for _, mds := range results {
		for _, md := range mds {
			if _, ok := md.Thumbnail(); !ok {
				r.logger.Info("video has no thumbnail", slog.String("video", string(md.ID)))
			}
			all = append(all, md)
		}
	}

	r.logger.Info("fetched metadata", slog.Int("batches", len(batches)), slog.Int("count", len(all)))
	return all, nil
}
