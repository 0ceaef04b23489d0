package fetcher

import (
	"context"

	"ewintr.nl/ytstats/model"
)

// MetadataFetcher looks up a batch of videos in one call. Videos that do not
// exist or are private are missing from the result.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, ids []string) ([]model.VideoMetadata, error)
}
