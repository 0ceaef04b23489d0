package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ewintr.nl/ytstats/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"
)

var ErrTimeout = errors.New("youtube api: timed out")

type Youtube struct {
	Client  *youtube.Service
	Timeout time.Duration
}

func NewYoutube(client *youtube.Service, timeout time.Duration) *Youtube {
	return &Youtube{Client: client, Timeout: timeout}
}

func (y *Youtube) FetchMetadata(ctx context.Context, ytIDs []string) ([]model.VideoMetadata, error) {
	if y.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.Timeout)
		defer cancel()
	}

	call := y.Client.Videos.
		List([]string{"snippet", "statistics"}).
		Id(strings.Join(ytIDs, ",")).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		var apiErr *googleapi.Error
		switch {
		case errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound:
			return []model.VideoMetadata{}, nil
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}

	mds := make([]model.VideoMetadata, 0, len(response.Items))
	for _, item := range response.Items {
		md := model.VideoMetadata{
			ID:         model.VideoID(item.Id),
			Thumbnails: map[string]string{},
		}
		if item.Statistics != nil {
			md.ViewCount = strconv.FormatUint(item.Statistics.ViewCount, 10)
			md.LikeCount = strconv.FormatUint(item.Statistics.LikeCount, 10)
			md.CommentCount = strconv.FormatUint(item.Statistics.CommentCount, 10)
		}
		if item.Snippet != nil {
			md.Title = item.Snippet.Title
			md.PublishedAt = item.Snippet.PublishedAt
			md.Thumbnails = thumbnails(item.Snippet.Thumbnails)
		}

		mds = append(mds, md)
	}

	return mds, nil
}

func thumbnails(details *youtube.ThumbnailDetails) map[string]string {
	urls := map[string]string{}
	if details == nil {
		return urls
	}
	for res, thumb := range map[string]*youtube.Thumbnail{
		"maxres":   details.Maxres,
		"standard": details.Standard,
		"high":     details.High,
		"medium":   details.Medium,
		"default":  details.Default,
	} {
		if thumb != nil && thumb.Url != "" {
			urls[res] = thumb.Url
		}
	}
	return urls
}

// IsTransient reports whether a failed lookup is worth another attempt.
// Bad requests and quota or key problems are final.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError
	}
	return true
}
