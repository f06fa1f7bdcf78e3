package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oit-uog/solr-federator/internal/query"
)

func TestParseJSONValue(t *testing.T) {
	term, err := query.ParseJSON([]byte(`"carex"`))
	require.NoError(t, err)
	assert.Equal(t, query.KindValue, term.Kind)
	assert.Equal(t, "carex", term.Value)
}

func TestParseJSONNumericValueRendersWithoutDecimals(t *testing.T) {
	term, err := query.ParseJSON([]byte(`42`))
	require.NoError(t, err)
	assert.Equal(t, "42", term.Value)
}

func TestParseJSONOr(t *testing.T) {
	term, err := query.ParseJSON([]byte(`[1, "a", "b"]`))
	require.NoError(t, err)
	assert.Equal(t, query.KindOr, term.Kind)
	require.Len(t, term.Children, 2)
	assert.Equal(t, "a", term.Children[0].Value)
	assert.Equal(t, "b", term.Children[1].Value)
}

func TestParseJSONAnd(t *testing.T) {
	term, err := query.ParseJSON([]byte(`[2, "a", "b"]`))
	require.NoError(t, err)
	assert.Equal(t, query.KindAnd, term.Kind)
}

func TestParseJSONUnknownCombinatorErrors(t *testing.T) {
	_, err := query.ParseJSON([]byte(`[99, "a", "b"]`))
	assert.Error(t, err)
}

func TestParseJSONFieldSearch(t *testing.T) {
	term, err := query.ParseJSON([]byte(`["genus", "Carex"]`))
	require.NoError(t, err)
	assert.Equal(t, query.KindFieldSearch, term.Kind)
	assert.Equal(t, "genus", term.Field)
	require.NotNil(t, term.Search)
	assert.Equal(t, "Carex", term.Search.Value)
}

func TestParseJSONFieldRange(t *testing.T) {
	term, err := query.ParseJSON([]byte(`["year", 1990, 2000]`))
	require.NoError(t, err)
	assert.Equal(t, query.KindFieldRange, term.Kind)
	assert.Equal(t, "1990", term.From)
	assert.Equal(t, "2000", term.To)
}

func TestParseJSONTooManyRangeValuesErrors(t *testing.T) {
	_, err := query.ParseJSON([]byte(`["year", 1, 2, 3]`))
	assert.Error(t, err)
}

func TestParseJSONEmptyListErrors(t *testing.T) {
	_, err := query.ParseJSON([]byte(`[]`))
	assert.Error(t, err)
}

func TestParseJSONInvalidJSONErrors(t *testing.T) {
	_, err := query.ParseJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseJSONSingleElementListUnwraps(t *testing.T) {
	term, err := query.ParseJSON([]byte(`["carex"]`))
	require.NoError(t, err)
	assert.Equal(t, query.KindValue, term.Kind)
	assert.Equal(t, "carex", term.Value)
}
