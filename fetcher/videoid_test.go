package fetcher

import (
	"io"
	"testing"

	"ewintr.nl/ytstats/model"
	"golang.org/x/exp/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractVideoID(t *testing.T) {
	for _, tc := range []struct {
		url string
		exp model.VideoID
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{url: "https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", exp: "dQw4w9WgXcQ"},
		{url: "https://m.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{url: "https://youtu.be/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{url: "https://youtu.be/dQw4w9WgXcQ?si=abc", exp: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/embed/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/v/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/e/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/shorts/aBc-_12345X", exp: "aBc-_12345X"},
		{url: "https://youtube.com/shorts/aBc-_12345X?feature=share", exp: "aBc-_12345X"},
	} {
		t.Run(tc.url, func(t *testing.T) {
			act, ok := ExtractVideoID(tc.url)
			if !ok {
				t.Fatalf("exp id in %s", tc.url)
			}
			if act != tc.exp {
				t.Errorf("exp %s, got %s", tc.exp, act)
			}
		})
	}
}

func TestExtractVideoIDNone(t *testing.T) {
	for _, url := range []string{
		"",
		"not a url",
		"https://vimeo.com/123456789",
		"https://www.youtube.com/",
		"https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw",
		"https://youtu.be/short",
		"https://www.youtube.com/shorts/tooshort",
	} {
		t.Run(url, func(t *testing.T) {
			if id, ok := ExtractVideoID(url); ok {
				t.Errorf("exp no id, got %s", id)
			}
		})
	}
}

func TestExtractReferences(t *testing.T) {
	rec := func(id, url string) model.Record {
		return model.Record{
			ID: id,
			Properties: map[string]model.Property{
				"Link": {Type: "url", URL: &url},
			},
		}
	}
	records := []model.Record{
		rec("r1", "https://youtu.be/aaaaaaaaaaa"),
		rec("r2", "https://example.com/nothing"),
		{ID: "r3", Properties: map[string]model.Property{}},
		rec("r4", "https://www.youtube.com/watch?v=bbbbbbbbbbb"),
	}

	refs, dropped := ExtractReferences(records, "Link", discardLogger())
	if dropped != 2 {
		t.Errorf("exp 2 dropped, got %d", dropped)
	}
	exp := []model.VideoReference{
		{RecordID: "r1", VideoID: "aaaaaaaaaaa", URL: "https://youtu.be/aaaaaaaaaaa"},
		{RecordID: "r4", VideoID: "bbbbbbbbbbb", URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb"},
	}
	if len(refs) != len(exp) {
		t.Fatalf("exp %d refs, got %d", len(exp), len(refs))
	}
	for i := range exp {
		if refs[i] != exp[i] {
			t.Errorf("exp %+v, got %+v", exp[i], refs[i])
		}
	}
}
