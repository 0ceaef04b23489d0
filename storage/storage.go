package storage

import (
	"context"

	"ewintr.nl/ytstats/model"
)

// Condition matches records whose property contains a substring. Kind is
// the property type, which decides the shape of the condition.
type Condition struct {
	Property string
	Kind     string
	Contains string
}

type Query struct {
	// Or matches records that satisfy any of the conditions.
	Or          []Condition
	StartCursor string
	PageSize    int
}

type Page struct {
	Records    []model.Record
	HasMore    bool
	NextCursor string
}

// Update is a partial write. Properties not listed are left as they are,
// as is the cover when CoverURL is empty.
type Update struct {
	Properties map[string]any
	CoverURL   string
}

type RecordRepository interface {
	Query(ctx context.Context, q Query) (Page, error)
	Schema(ctx context.Context) (map[string]string, error)
	Update(ctx context.Context, recordID string, u Update) error
}
