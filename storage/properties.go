package storage

// Property kinds the sync reads or writes.
const (
	KindURL      = "url"
	KindRichText = "rich_text"
	KindTitle    = "title"
	KindNumber   = "number"
	KindDate     = "date"
)

func NumberProperty(n int64) map[string]any {
	return map[string]any{"number": n}
}

func DateProperty(start string) map[string]any {
	return map[string]any{"date": map[string]string{"start": start}}
}

// TextProperty sets a title or rich text property to a single plain run.
func TextProperty(kind, content string) map[string]any {
	return map[string]any{
		kind: []map[string]any{
			{"type": "text", "text": map[string]string{"content": content}},
		},
	}
}
