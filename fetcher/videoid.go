package fetcher

import (
	"regexp"

	"ewintr.nl/ytstats/model"
	"golang.org/x/exp/slog"
)

var (
	shortsPattern = regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`)
	videoPattern  = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)
)

// ExtractVideoID finds the video id in a watch, embed, short link or shorts
// URL.
func ExtractVideoID(url string) (model.VideoID, bool) {
	if m := shortsPattern.FindStringSubmatch(url); m != nil {
		return model.VideoID(m[1]), true
	}
	if m := videoPattern.FindStringSubmatch(url); m != nil {
		return model.VideoID(m[1]), true
	}
	return "", false
}

// ExtractReferences maps records to the videos their URL field points at.
// Records without a URL or with an unrecognized one are dropped and
// logged. The order of the records is kept.
func ExtractReferences(records []model.Record, urlField string, logger *slog.Logger) ([]model.VideoReference, int) {
	refs := make([]model.VideoReference, 0, len(records))
	dropped := 0
	for _, rec := range records {
		url, ok := rec.Text(urlField)
		if !ok {
			logger.Warn("record has no video url", slog.String("record", rec.ID), slog.String("field", urlField))
			dropped++
			continue
		}
		id, ok := ExtractVideoID(url)
		if !ok {
			logger.Warn("could not find video id in url", slog.String("record", rec.ID), slog.String("url", url))
			dropped++
			continue
		}
		refs = append(refs, model.VideoReference{
			RecordID: rec.ID,
			VideoID:  id,
			URL:      url,
		})
	}

	return refs, dropped
}
