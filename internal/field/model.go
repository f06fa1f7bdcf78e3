package field

import "fmt"

// CollectionSolrname is the synthetic solrname given to the leading
// "collection" column every FieldModel carries. It never corresponds to a
// real indexed field on any backend — a term resolving to it always
// collapses to a match-all query.
const CollectionSolrname = "coll"

// NotFoundError is returned by Get and Resolve when a column cannot be
// located by colname or solrname.
type NotFoundError struct {
	Field string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("field: column %q not found", e.Field)
}

// Model is a backend's (or the merged, combined) field schema: an ordered
// list of columns plus lookup indices by colname and by the column's
// effective solrname. The leading column is always "collection" /
// "coll" — synthesized on construction if the caller didn't supply one.
type Model struct {
	columns       []*Column
	colnameIndex  map[string]int
	solrnameIndex map[string]int

	// FollowModel is the merged schema this model has been rebound to, or
	// nil if this model is itself the merged schema (or not yet bound).
	FollowModel *Model
	// ChangedSolrnames maps this model's own solrname to the merged
	// schema's solrname, for every column whose name changed during
	// merging. Populated by RebindTo.
	ChangedSolrnames map[string]string
	// TypeCasts maps this model's own solrname to the cast appropriate
	// for the merged schema's declared type for that column. Populated by
	// RebindTo.
	TypeCasts map[string]TypeCast
	// Stale is true until this model has been bound to an up-to-date
	// merged schema via RebindTo.
	Stale bool
}

// NewModel builds a Model from columns, synthesizing a leading "collection"
// column (solrname "coll", displaycolidx 0) if one isn't already present,
// shifting every other column's ColIdx/DisplayColIdx by +1 when it does.
func NewModel(columns ...*Column) (*Model, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("field: at least one column is required")
	}

	cols := columns
	if columns[0].Colname != "collection" {
		zero := 0
		collCol := &Column{
			Colname:        "collection",
			Solrname:       CollectionSolrname,
			Solrtype:       SolrString,
			Title:          "collection",
			Type:           TypeString,
			AdvancedSearch: "true",
			ColIdx:         &zero,
			DisplayColIdx:  &zero,
		}
		shifted := make([]*Column, 0, len(columns)+1)
		shifted = append(shifted, collCol)
		for _, c := range columns {
			c = c.Clone()
			if c.ColIdx != nil {
				v := *c.ColIdx + 1
				c.ColIdx = &v
			}
			if c.DisplayColIdx != nil {
				v := *c.DisplayColIdx + 1
				c.DisplayColIdx = &v
			}
			shifted = append(shifted, c)
		}
		cols = shifted
	}

	m := &Model{
		columns:       cols,
		colnameIndex:  make(map[string]int, len(cols)),
		solrnameIndex: make(map[string]int, len(cols)),
		Stale:         true,
	}
	for i, c := range cols {
		m.colnameIndex[c.Colname] = i
		m.solrnameIndex[c.Solrname] = i
	}
	return m, nil
}

// Columns returns the model's columns in order. Callers must not mutate the
// returned slice or its elements.
func (m *Model) Columns() []*Column {
	return m.columns
}

// Get returns the column with the given colname.
func (m *Model) Get(colname string) (*Column, error) {
	i, ok := m.colnameIndex[colname]
	if !ok {
		return nil, &NotFoundError{Field: colname}
	}
	return m.columns[i], nil
}

// GetBySolrname returns the column currently indexed under solrname (the
// model's own solrname before RebindTo, or the merged schema's solrname
// after).
func (m *Model) GetBySolrname(solrname string) (*Column, error) {
	i, ok := m.solrnameIndex[solrname]
	if !ok {
		return nil, &NotFoundError{Field: solrname}
	}
	return m.columns[i], nil
}

// Resolve translates a user-supplied field token — either a colname or a
// (possibly merged-schema) solrname — into the solrname this model's own
// backend actually understands. It tries the solrname index first, falling
// back to the colname index, mirroring the columns' own raw Solrname.
func (m *Model) Resolve(fieldToken string) (string, error) {
	if i, ok := m.solrnameIndex[fieldToken]; ok {
		return m.columns[i].Solrname, nil
	}
	if i, ok := m.colnameIndex[fieldToken]; ok {
		return m.columns[i].Solrname, nil
	}
	return "", &NotFoundError{Field: fieldToken}
}

// PremergeEntry pairs a column's stable identity (colname) with the
// position the merger should try to preserve (displaycolidx, nil if unset).
type PremergeEntry struct {
	Colname       string
	DisplayColIdx *int
}

// PremergeRepr returns the ordered (colname, displaycolidx) pairs the
// schema merger consumes.
func (m *Model) PremergeRepr() []PremergeEntry {
	out := make([]PremergeEntry, len(m.columns))
	for i, c := range m.columns {
		out[i] = PremergeEntry{Colname: c.Colname, DisplayColIdx: clonePtr(c.DisplayColIdx)}
	}
	return out
}

// RebindTo points this model at a merged schema: for every column, the
// merged schema's solrname for that colname becomes this model's
// resolvable name, ChangedSolrnames records any renames (own solrname ->
// merged solrname) so the backend client can rewrite documents on the way
// out, and TypeCasts records, per this model's own solrname, the cast
// function appropriate to the merged schema's declared type.
func (m *Model) RebindTo(follow *Model) error {
	newIndex := make(map[string]int, len(m.columns))
	changed := make(map[string]string)
	casts := make(map[string]TypeCast, len(m.columns))

	for i, c := range m.columns {
		fc, err := follow.Get(c.Colname)
		if err != nil {
			return fmt.Errorf("field: rebind: %w", err)
		}
		newIndex[fc.Solrname] = i
		if fc.Solrname != c.Solrname {
			changed[c.Solrname] = fc.Solrname
		}
		cast, ok := solrTypeTransforms[fc.Solrtype]
		if !ok {
			return fmt.Errorf("field: rebind: unknown solrtype %q for column %q", fc.Solrtype, c.Colname)
		}
		casts[c.Solrname] = cast
	}

	m.solrnameIndex = newIndex
	m.ChangedSolrnames = changed
	m.TypeCasts = casts
	m.FollowModel = follow
	m.Stale = false
	return nil
}
