// Package field implements the Column and FieldModel types: the per-backend
// schema representation that the schema merger, query translator, and
// backend client all build on.
package field

import (
	"fmt"
	"strings"
)

// SolrType is the backend's declared storage type for a column. The order
// below (string, tdouble, int, list) is also the specificity hierarchy used
// when two columns of the same name disagree on type during a merge: the
// earlier entry wins.
type SolrType string

const (
	SolrString  SolrType = "string"
	SolrTDouble SolrType = "tdouble"
	SolrInt     SolrType = "int"
	SolrList    SolrType = "list"
)

var solrTypeRank = map[SolrType]int{
	SolrString:  0,
	SolrTDouble: 1,
	SolrInt:     2,
	SolrList:    3,
}

// ColumnType is the display-facing Java type name carried alongside a
// column, mirroring what the upstream schema documents emit.
type ColumnType string

const (
	TypeCalendar   ColumnType = "java.util.Calendar"
	TypeString     ColumnType = "java.lang.String"
	TypeBigDecimal ColumnType = "java.math.BigDecimal"
	TypeArray      ColumnType = "java.util.Arrays"
)

// TypeCast converts a raw JSON-decoded value into the type declared by a
// column's Solrtype, so that documents coming back from different backends
// present a consistent Go type per field.
type TypeCast func(v any) (any, error)

var solrTypeTransforms = map[SolrType]TypeCast{
	SolrString:  castString,
	SolrTDouble: castFloat,
	SolrInt:     castInt,
	SolrList:    castList,
}

func castString(v any) (any, error) {
	if v == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", v), nil
}

func castFloat(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return 0.0, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	default:
		return nil, fmt.Errorf("field: cannot cast %T to tdouble", v)
	}
}

func castInt(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int(t), nil
	case int:
		return t, nil
	default:
		return nil, fmt.Errorf("field: cannot cast %T to int", v)
	}
}

func castList(v any) (any, error) {
	if v == nil {
		return []any{}, nil
	}
	if l, ok := v.([]any); ok {
		return l, nil
	}
	return []any{v}, nil
}

// Column describes one field of a backend's schema, plus the positional and
// display metadata used when merging schemas together.
//
// ColIdx, DisplayColIdx, Width, and TreeRank are *int rather than int so a
// genuinely absent value (nil) can be told apart from an explicit 0 — this
// matters for DisplayColIdx, whose zero value is a legitimate "first
// column" position, not "unset".
type Column struct {
	Colname       string
	Solrname      string
	Solrtype      SolrType
	Title         string
	Type          ColumnType
	Width         *int
	SpTable       *string
	SpTableTitle  *string
	SpFld         *string
	SpFldTitle    *string
	TreeID        *string
	TreeRank      *int
	ColIdx        *int
	AdvancedSearch string
	DisplayColIdx *int
}

// Input is the wire shape a Column is constructed from (e.g. one entry of
// an upstream fldmodel.json document). Only Colname, Solrname, and Solrtype
// are required; everything else is defaulted per NewColumn's rules.
type Input struct {
	Colname        string  `json:"colname"`
	Solrname       string  `json:"solrname"`
	Solrtype       string  `json:"solrtype"`
	Title          *string `json:"title,omitempty"`
	Type           *string `json:"type,omitempty"`
	Width          *int    `json:"width,omitempty"`
	SpTable        *string `json:"sptable,omitempty"`
	SpTableTitle   *string `json:"sptabletitle,omitempty"`
	SpFld          *string `json:"spfld,omitempty"`
	SpFldTitle     *string `json:"spfldtitle,omitempty"`
	TreeID         *string `json:"treeid,omitempty"`
	TreeRank       *int    `json:"treerank,omitempty"`
	ColIdx         *int    `json:"colidx,omitempty"`
	AdvancedSearch *string `json:"advancedsearch,omitempty"`
	DisplayColIdx  *int    `json:"displaycolidx,omitempty"`
}

// NewColumn builds a Column from in, applying the defaulting rules for
// every optional field and the img-is-always-a-list special case.
func NewColumn(in Input) (*Column, error) {
	if in.Colname == "" || in.Solrname == "" || in.Solrtype == "" {
		return nil, fmt.Errorf("field: colname, solrname and solrtype are required")
	}

	c := &Column{
		Colname:  in.Colname,
		Solrname: in.Solrname,
		Solrtype: SolrType(in.Solrtype),
	}

	if in.Title != nil {
		c.Title = *in.Title
	} else {
		c.Title = in.Colname
	}

	if in.Type != nil {
		c.Type = ColumnType(*in.Type)
	} else {
		c.Type = determineType(c.Title, c.Solrtype)
	}

	c.Width = in.Width
	c.SpTable = in.SpTable
	c.SpTableTitle = in.SpTableTitle
	c.SpFld = in.SpFld
	c.SpFldTitle = in.SpFldTitle
	c.TreeID = in.TreeID
	c.TreeRank = in.TreeRank
	c.ColIdx = in.ColIdx
	c.DisplayColIdx = in.DisplayColIdx

	if in.AdvancedSearch != nil {
		c.AdvancedSearch = *in.AdvancedSearch
	} else {
		c.AdvancedSearch = "false"
	}

	if in.Solrname == "img" {
		c.Solrtype = SolrList
		c.Type = determineType(c.Title, c.Solrtype)
	}

	return c, nil
}

func determineType(title string, t SolrType) ColumnType {
	if strings.HasSuffix(title, "Date") && t == SolrInt {
		return TypeCalendar
	}
	switch t {
	case SolrInt, SolrString:
		return TypeString
	case SolrTDouble:
		return TypeBigDecimal
	case SolrList:
		return TypeArray
	default:
		return TypeString
	}
}

// Clone returns a deep copy of c, so merges never mutate a shared column.
func (c *Column) Clone() *Column {
	cp := *c
	cp.Width = clonePtr(c.Width)
	cp.SpTable = cloneStrPtr(c.SpTable)
	cp.SpTableTitle = cloneStrPtr(c.SpTableTitle)
	cp.SpFld = cloneStrPtr(c.SpFld)
	cp.SpFldTitle = cloneStrPtr(c.SpFldTitle)
	cp.TreeID = cloneStrPtr(c.TreeID)
	cp.TreeRank = clonePtr(c.TreeRank)
	cp.ColIdx = clonePtr(c.ColIdx)
	cp.DisplayColIdx = clonePtr(c.DisplayColIdx)
	return &cp
}

func clonePtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MismatchError is returned by MergedColumn when two columns with the same
// colname disagree on a field the merge rules require to be equal.
type MismatchError struct {
	Colname string
	Field   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("field: column %q: %ss don't match", e.Colname, e.Field)
}

// MergedColumn combines c and other (which must share the same Colname)
// into a single column, following the per-field merge rules: most fields
// must agree exactly; Solrname takes the lexically greater
// value; Solrtype takes the more specific of the two; Width/SpTableTitle/
// ColIdx/DisplayColIdx take the max, treating nil as -∞; AdvancedSearch is
// "true" if either side is "true", otherwise the two must agree.
func (c *Column) MergedColumn(other *Column) (*Column, error) {
	if c.Colname != other.Colname {
		return nil, &MismatchError{Colname: c.Colname, Field: "colname"}
	}
	if c.Title != other.Title {
		return nil, &MismatchError{Colname: c.Colname, Field: "title"}
	}
	if c.Type != other.Type {
		return nil, &MismatchError{Colname: c.Colname, Field: "type"}
	}
	if !strPtrEqual(c.SpTable, other.SpTable) {
		return nil, &MismatchError{Colname: c.Colname, Field: "sptable"}
	}
	if !strPtrEqual(c.SpFld, other.SpFld) {
		return nil, &MismatchError{Colname: c.Colname, Field: "spfld"}
	}
	if !strPtrEqual(c.SpFldTitle, other.SpFldTitle) {
		return nil, &MismatchError{Colname: c.Colname, Field: "spfldtitle"}
	}
	if !strPtrEqual(c.TreeID, other.TreeID) {
		return nil, &MismatchError{Colname: c.Colname, Field: "treeid"}
	}
	if !intPtrEqual(c.TreeRank, other.TreeRank) {
		return nil, &MismatchError{Colname: c.Colname, Field: "treerank"}
	}

	merged := &Column{
		Colname:       c.Colname,
		Title:         c.Title,
		Type:          c.Type,
		SpTable:       cloneStrPtr(c.SpTable),
		SpFld:         cloneStrPtr(c.SpFld),
		SpFldTitle:    cloneStrPtr(c.SpFldTitle),
		TreeID:        cloneStrPtr(c.TreeID),
		TreeRank:      clonePtr(c.TreeRank),
		Solrname:      maxString(c.Solrname, other.Solrname),
		Solrtype:      minSolrtype(c.Solrtype, other.Solrtype),
		Width:         maxIntPtrNilLow(c.Width, other.Width),
		SpTableTitle:  maxStrPtrNilLow(c.SpTableTitle, other.SpTableTitle),
		ColIdx:        maxIntPtrNilLow(c.ColIdx, other.ColIdx),
		DisplayColIdx: maxIntPtrNilLow(c.DisplayColIdx, other.DisplayColIdx),
	}

	if c.AdvancedSearch == "true" || other.AdvancedSearch == "true" {
		merged.AdvancedSearch = "true"
	} else if c.AdvancedSearch == other.AdvancedSearch {
		merged.AdvancedSearch = c.AdvancedSearch
	} else {
		return nil, &MismatchError{Colname: c.Colname, Field: "advancedsearch"}
	}

	return merged, nil
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func maxString(a, b string) string {
	if a > b {
		return a
	}
	return b
}

func minSolrtype(a, b SolrType) SolrType {
	if solrTypeRank[a] <= solrTypeRank[b] {
		return a
	}
	return b
}

// maxIntPtrNilLow treats nil as -infinity: a present value always beats an
// absent one, and between two present values the larger wins.
func maxIntPtrNilLow(a, b *int) *int {
	if a == nil {
		return clonePtr(b)
	}
	if b == nil {
		return clonePtr(a)
	}
	if *a >= *b {
		return clonePtr(a)
	}
	return clonePtr(b)
}

func maxStrPtrNilLow(a, b *string) *string {
	if a == nil {
		return cloneStrPtr(b)
	}
	if b == nil {
		return cloneStrPtr(a)
	}
	if *a >= *b {
		return cloneStrPtr(a)
	}
	return cloneStrPtr(b)
}
