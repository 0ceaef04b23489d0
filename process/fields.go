package process

import (
	"fmt"
	"strings"

	"ewintr.nl/ytstats/config"
	"ewintr.nl/ytstats/model"
	"ewintr.nl/ytstats/storage"
	"golang.org/x/exp/slices"
)

// ResolveFields looks up the configured property names in the database
// schema and checks that each has a type the sync can read or write.
func ResolveFields(fields config.Fields, schema map[string]string) (model.FieldMap, error) {
	var fm model.FieldMap
	for _, role := range []struct {
		role     string
		name     string
		required bool
		kinds    []string
		dst      *model.Field
	}{
		{"video url", fields.VideoURL, true, []string{storage.KindURL, storage.KindRichText}, &fm.VideoURL},
		{"views", fields.Views, true, []string{storage.KindNumber}, &fm.Views},
		{"likes", fields.Likes, false, []string{storage.KindNumber}, &fm.Likes},
		{"comments", fields.Comments, false, []string{storage.KindNumber}, &fm.Comments},
		{"published", fields.Published, false, []string{storage.KindDate}, &fm.Published},
		{"title", fields.Title, false, []string{storage.KindTitle, storage.KindRichText}, &fm.Title},
	} {
		if role.name == "" {
			if role.required {
				return model.FieldMap{}, fmt.Errorf("no property configured for %s", role.role)
			}
			continue
		}
		kind, ok := schema[role.name]
		if !ok {
			return model.FieldMap{}, fmt.Errorf("property %q for %s does not exist in the database", role.name, role.role)
		}
		if !slices.Contains(role.kinds, kind) {
			return model.FieldMap{}, fmt.Errorf("property %q for %s has type %s, exp one of %s", role.name, role.role, kind, strings.Join(role.kinds, ", "))
		}
		*role.dst = model.Field{Name: role.name, Kind: kind}
	}

	return fm, nil
}
