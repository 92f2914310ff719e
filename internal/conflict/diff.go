package conflict

import (
	"sort"

	"github.com/iudanet/gophsync/internal/models"
)

// metadataFields are never treated as domain fields even if a producer
// stores them in Fields.
var metadataFields = map[string]struct{}{
	"id":          {},
	"type":        {},
	"clock":       {},
	"node_id":     {},
	"updated_at":  {},
	"tombstone":   {},
	"field_times": {},
}

// DiffFields returns the sorted names of domain fields whose values differ
// between a and b, using structural equality (models.Equal).
// A field set to Null on one side and absent on the other does not differ.
func DiffFields(a, b *models.Record) []string {
	names := make(map[string]struct{}, len(a.Fields)+len(b.Fields))
	for name := range a.Fields {
		names[name] = struct{}{}
	}
	for name := range b.Fields {
		names[name] = struct{}{}
	}

	diff := make([]string, 0)
	for name := range names {
		if _, meta := metadataFields[name]; meta {
			continue
		}
		if !models.Equal(a.Field(name), b.Field(name)) {
			diff = append(diff, name)
		}
	}

	sort.Strings(diff)
	return diff
}
