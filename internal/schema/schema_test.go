package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oit-uog/solr-federator/internal/field"
	"github.com/oit-uog/solr-federator/internal/schema"
)

func col(t *testing.T, colname, solrname, solrtype string, displayColIdx *int) *field.Column {
	t.Helper()
	c, err := field.NewColumn(field.Input{
		Colname:       colname,
		Solrname:      solrname,
		Solrtype:      solrtype,
		DisplayColIdx: displayColIdx,
	})
	require.NoError(t, err)
	return c
}

func idx(i int) *int { return &i }

func TestMergeUnionsColumnsFromBothModels(t *testing.T) {
	a, err := field.NewModel(
		col(t, "catalognumber", "catnum", "string", idx(0)),
		col(t, "genus", "genus", "string", idx(1)),
	)
	require.NoError(t, err)

	b, err := field.NewModel(
		col(t, "genus", "genus", "string", idx(0)),
		col(t, "species", "species", "string", idx(1)),
	)
	require.NoError(t, err)

	merged, err := schema.Merge(a, b)
	require.NoError(t, err)

	_, err = merged.Get("catalognumber")
	assert.NoError(t, err)
	_, err = merged.Get("genus")
	assert.NoError(t, err)
	_, err = merged.Get("species")
	assert.NoError(t, err)
	// leading synthetic collection column always survives the merge.
	_, err = merged.Get("collection")
	assert.NoError(t, err)
}

func TestMergeCombinesSharedColumns(t *testing.T) {
	a, err := field.NewModel(col(t, "genus", "genus_a", "string", idx(0)))
	require.NoError(t, err)
	b, err := field.NewModel(col(t, "genus", "genus_b", "string", idx(0)))
	require.NoError(t, err)

	merged, err := schema.Merge(a, b)
	require.NoError(t, err)

	c, err := merged.Get("genus")
	require.NoError(t, err)
	assert.Equal(t, "genus_b", c.Solrname)
}

func TestMergeErrorsOnIncompatibleSharedColumn(t *testing.T) {
	a, err := field.NewModel(col(t, "genus", "genus", "string", idx(0)))
	require.NoError(t, err)

	bCol, err := field.NewColumn(field.Input{
		Colname:  "genus",
		Solrname: "genus",
		Solrtype: "string",
		Title:    strp("a different title"),
	})
	require.NoError(t, err)
	b, err := field.NewModel(bCol)
	require.NoError(t, err)

	_, err = schema.Merge(a, b)
	assert.Error(t, err)
}

func strp(s string) *string { return &s }
