package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oit-uog/solr-federator/internal/field"
)

func buildModel(t *testing.T, rename map[string]string) *field.Model {
	t.Helper()
	genus, err := field.NewColumn(field.Input{Colname: "genus", Solrname: "genus", Solrtype: "string"})
	require.NoError(t, err)
	year, err := field.NewColumn(field.Input{Colname: "year", Solrname: "year", Solrtype: "int"})
	require.NoError(t, err)
	m, err := field.NewModel(genus, year)
	require.NoError(t, err)

	merged := m
	if rename != nil {
		renamedCols := make([]*field.Column, 0, len(m.Columns()))
		for _, c := range m.Columns() {
			cp := c.Clone()
			if to, ok := rename[c.Colname]; ok {
				cp.Solrname = to
			}
			renamedCols = append(renamedCols, cp)
		}
		mm, err := field.NewModel(renamedCols...)
		require.NoError(t, err)
		merged = mm
	}
	require.NoError(t, m.RebindTo(merged))
	return m
}

func TestPostProcessDropsContentsAndStampsCollection(t *testing.T) {
	model := buildModel(t, nil)
	doc := map[string]any{"genus": "Carex", "year": 1990.0, "contents": "raw blob"}

	out, err := postProcess(doc, model, "botany")
	require.NoError(t, err)

	_, hasContents := out["contents"]
	assert.False(t, hasContents)
	assert.Equal(t, "botany", out["coll"])
	assert.Equal(t, "Carex", out["genus"])
	assert.Equal(t, 1990, out["year"])
}

func TestPostProcessRenamesChangedSolrnames(t *testing.T) {
	model := buildModel(t, map[string]string{"genus": "genus_merged"})
	doc := map[string]any{"genus": "Carex", "year": 1990.0}

	out, err := postProcess(doc, model, "botany")
	require.NoError(t, err)

	_, stillHasOld := out["genus"]
	assert.False(t, stillHasOld)
	assert.Equal(t, "Carex", out["genus_merged"])
}

func TestPostProcessParsesAttachmentBlob(t *testing.T) {
	model := buildModel(t, nil)
	doc := map[string]any{
		"genus": "Carex",
		"year":  1990.0,
		"img":   `[{AttachmentID:1,AttachmentLocation:"a.jpg",Title:"plate 1"}]`,
	}

	out, err := postProcess(doc, model, "botany")
	require.NoError(t, err)

	attachments, ok := out["img"].([]Attachment)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	assert.Equal(t, 1, attachments[0].ID)
	assert.Equal(t, "a.jpg", attachments[0].Name)
	assert.Equal(t, "plate 1", attachments[0].Title)
	assert.Equal(t, "botany", attachments[0].Coll)
}
