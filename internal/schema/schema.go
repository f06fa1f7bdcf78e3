package schema

import (
	"fmt"

	"github.com/oit-uog/solr-federator/internal/field"
)

// Merge combines two field models into one: the union of both schemas'
// columns, positioned by interleaving their display orders
// (merge/sortPlace in merge.go), with any column present in both models combined
// via Column.MergedColumn.
func Merge(a, b *field.Model) (*field.Model, error) {
	aRepr := toEntries(a.PremergeRepr())
	bRepr := toEntries(b.PremergeRepr())

	merged := merge(aRepr, bRepr)

	cols := make([]*field.Column, 0, len(merged))
	for _, e := range merged {
		ca, aErr := a.Get(e.key)
		cb, bErr := b.Get(e.key)

		var resolved *field.Column
		switch {
		case aErr == nil && bErr == nil:
			mc, err := ca.MergedColumn(cb)
			if err != nil {
				return nil, fmt.Errorf("schema: merge column %q: %w", e.key, err)
			}
			resolved = mc
		case aErr == nil:
			resolved = ca.Clone()
		case bErr == nil:
			resolved = cb.Clone()
		default:
			return nil, fmt.Errorf("schema: merge: column %q missing from both models", e.key)
		}

		resolved.DisplayColIdx = clone(e.value)
		cols = append(cols, resolved)
	}

	return field.NewModel(cols...)
}

func toEntries(reprs []field.PremergeEntry) []entry {
	out := make([]entry, len(reprs))
	for i, r := range reprs {
		out[i] = entry{key: r.Colname, value: r.DisplayColIdx}
	}
	return out
}
