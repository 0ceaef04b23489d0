package model

type VideoID string

// VideoReference ties a database record to the video its URL points at.
type VideoReference struct {
	RecordID string
	VideoID  VideoID
	URL      string
}

type Batch []VideoReference

func (b Batch) IDs() []string {
	ids := make([]string, len(b))
	for i, ref := range b {
		ids[i] = string(ref.VideoID)
	}
	return ids
}

// Thumbnail resolutions in order of preference.
var ThumbnailPreference = []string{"maxres", "standard", "high", "medium", "default"}

type VideoMetadata struct {
	ID           VideoID
	ViewCount    string
	LikeCount    string
	CommentCount string
	PublishedAt  string
	Title        string
	Thumbnails   map[string]string
}

// Thumbnail returns the URL of the best available resolution.
func (md VideoMetadata) Thumbnail() (string, bool) {
	for _, res := range ThumbnailPreference {
		if url := md.Thumbnails[res]; url != "" {
			return url, true
		}
	}
	return "", false
}

type UpdatePlan struct {
	Reference VideoReference
	Metadata  VideoMetadata
}

type RunResult struct {
	RunID    string
	Fetched  int
	Dropped  int
	Batches  int
	Resolved int
	Planned  int
	Updated  []string
	Failed   map[string]error
}
