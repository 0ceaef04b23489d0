package model

import "strings"

type RichText struct {
	PlainText string `json:"plain_text"`
}

// Property is a single typed value on a database record. Only the kinds
// that can carry a video URL are decoded.
type Property struct {
	Type     string     `json:"type"`
	URL      *string    `json:"url,omitempty"`
	RichText []RichText `json:"rich_text,omitempty"`
	Title    []RichText `json:"title,omitempty"`
}

func (p Property) Text() string {
	switch p.Type {
	case "url":
		if p.URL == nil {
			return ""
		}
		return *p.URL
	case "rich_text":
		return joinText(p.RichText)
	case "title":
		return joinText(p.Title)
	}
	return ""
}

func joinText(parts []RichText) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.PlainText)
	}
	return sb.String()
}

type Record struct {
	ID         string              `json:"id"`
	Properties map[string]Property `json:"properties"`
}

// Text returns the textual value of the named field, false when the field
// is absent or empty.
func (r Record) Text(field string) (string, bool) {
	prop, ok := r.Properties[field]
	if !ok {
		return "", false
	}
	text := strings.TrimSpace(prop.Text())
	return text, text != ""
}
