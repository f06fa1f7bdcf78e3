package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oit-uog/solr-federator/internal/query"
)

func TestDeepHashSortsNestedLists(t *testing.T) {
	a := []any{"b", "a", []any{"z", "y"}}
	b := []any{[]any{"y", "z"}, "a", "b"}

	assert.Equal(t, query.DeepHash(a), query.DeepHash(b))
}

func TestDeepHashLeavesScalarsAlone(t *testing.T) {
	assert.Equal(t, "carex", query.DeepHash("carex"))
}

func TestCacheKeyVariesOnDirection(t *testing.T) {
	asc := query.CacheKey([]any{"x"}, "genus", true)
	desc := query.CacheKey([]any{"x"}, "genus", false)
	assert.NotEqual(t, asc, desc)
}

func TestCacheKeyStableAcrossEquivalentShapes(t *testing.T) {
	k1 := query.CacheKey([]any{"b", "a"}, "genus", true)
	k2 := query.CacheKey([]any{"a", "b"}, "genus", true)
	assert.Equal(t, k1, k2)
}

func TestCombinedCacheKeyVariesOnCollectionSet(t *testing.T) {
	k1 := query.CombinedCacheKey([]any{"x"}, []string{"botany"}, "genus", true)
	k2 := query.CombinedCacheKey([]any{"x"}, []string{"botany", "herps"}, "genus", true)
	assert.NotEqual(t, k1, k2)
}

func TestCombinedCacheKeyIgnoresCollectionOrder(t *testing.T) {
	k1 := query.CombinedCacheKey([]any{"x"}, []string{"botany", "herps"}, "genus", true)
	k2 := query.CombinedCacheKey([]any{"x"}, []string{"herps", "botany"}, "genus", true)
	assert.Equal(t, k1, k2)
}
