package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oit-uog/solr-federator/internal/field"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func TestNewColumnDefaults(t *testing.T) {
	c, err := field.NewColumn(field.Input{
		Colname:  "catalognumber",
		Solrname: "catnum",
		Solrtype: "string",
	})
	require.NoError(t, err)
	assert.Equal(t, "catalognumber", c.Title)
	assert.Equal(t, field.TypeString, c.Type)
	assert.Equal(t, "false", c.AdvancedSearch)
}

func TestNewColumnImgIsAlwaysList(t *testing.T) {
	c, err := field.NewColumn(field.Input{
		Colname:  "attachments",
		Solrname: "img",
		Solrtype: "string",
	})
	require.NoError(t, err)
	assert.Equal(t, field.SolrList, c.Solrtype)
	assert.Equal(t, field.TypeArray, c.Type)
}

func TestNewColumnRequiresCoreFields(t *testing.T) {
	_, err := field.NewColumn(field.Input{Colname: "x"})
	assert.Error(t, err)
}

func TestNewColumnDateSuffixIsCalendar(t *testing.T) {
	c, err := field.NewColumn(field.Input{
		Colname:  "collectingDate",
		Solrname: "coldate",
		Solrtype: "int",
	})
	require.NoError(t, err)
	assert.Equal(t, field.TypeCalendar, c.Type)
}

func TestMergedColumnRequiresMatchingColname(t *testing.T) {
	a, _ := field.NewColumn(field.Input{Colname: "a", Solrname: "a", Solrtype: "string"})
	b, _ := field.NewColumn(field.Input{Colname: "b", Solrname: "b", Solrtype: "string"})
	_, err := a.MergedColumn(b)
	assert.Error(t, err)
}

func TestMergedColumnSolrnameTakesLexicallyGreater(t *testing.T) {
	a, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "aaa", Solrtype: "string"})
	b, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "bbb", Solrtype: "string"})
	m, err := a.MergedColumn(b)
	require.NoError(t, err)
	assert.Equal(t, "bbb", m.Solrname)
}

func TestMergedColumnSolrtypeTakesMoreSpecific(t *testing.T) {
	a, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "string"})
	b, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "int"})
	m, err := a.MergedColumn(b)
	require.NoError(t, err)
	assert.Equal(t, field.SolrString, m.Solrtype)
}

func TestMergedColumnWidthTakesMaxTreatingNilAsLow(t *testing.T) {
	a, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "string", Width: intp(10)})
	b, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "string"})
	m, err := a.MergedColumn(b)
	require.NoError(t, err)
	require.NotNil(t, m.Width)
	assert.Equal(t, 10, *m.Width)
}

func TestMergedColumnAdvancedSearchTrueWins(t *testing.T) {
	a, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "string", AdvancedSearch: strp("true")})
	b, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "string", AdvancedSearch: strp("false")})
	m, err := a.MergedColumn(b)
	require.NoError(t, err)
	assert.Equal(t, "true", m.AdvancedSearch)
}

func TestMergedColumnDisagreeingTitleIsAnError(t *testing.T) {
	a, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "string", Title: strp("Foo")})
	b, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "string", Title: strp("Bar")})
	_, err := a.MergedColumn(b)
	assert.Error(t, err)
	var mismatch *field.MismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "title", mismatch.Field)
}

func TestCloneIsIndependent(t *testing.T) {
	a, _ := field.NewColumn(field.Input{Colname: "x", Solrname: "x", Solrtype: "string", Width: intp(5)})
	cp := a.Clone()
	*cp.Width = 99
	assert.Equal(t, 5, *a.Width)
}
