// Package fixup holds the stateless transforms applied to a document's
// objects before identifiers are remapped.
package fixup

import (
	"errors"

	"github.com/Ashfaaq98/stixkit/internal/stix"
)

// ErrBadTimestamp is returned when a relationship carries an unparseable time.
var ErrBadTimestamp = errors.New("malformed timestamp")

// Fixup is a single named transform over a document's objects. It may mutate
// objects in place or replace elements of the slice.
type Fixup struct {
	Name  string
	Apply func(objects []stix.Object) (changed int, err error)
}

// Default returns the fixups in the order they must run. Field removal is
// only included when keys are given.
func Default(removeFields []string) []Fixup {
	fixups := []Fixup{
		{Name: "tlp-marking", Apply: ReplaceTLPClear},
		{Name: "relationship-times", Apply: RepairRelationshipTimes},
		{Name: "cve-references", Apply: NormalizeCVEReferences},
		{Name: "url-sanitize", Apply: SanitizeURLs},
	}
	if len(removeFields) > 0 {
		keys := append([]string(nil), removeFields...)
		fixups = append(fixups, Fixup{
			Name: "remove-fields",
			Apply: func(objects []stix.Object) (int, error) {
				return RemoveFields(objects, keys), nil
			},
		})
	}
	return fixups
}

// RemoveFields deletes the given top-level keys from every object.
func RemoveFields(objects []stix.Object, keys []string) int {
	removed := 0
	for _, obj := range objects {
		for _, k := range keys {
			if _, ok := obj[k]; ok {
				delete(obj, k)
				removed++
			}
		}
	}
	return removed
}
