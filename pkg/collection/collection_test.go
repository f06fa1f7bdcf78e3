package collection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oit-uog/solr-federator/pkg/collection"
)

func TestFilter(t *testing.T) {
	even := func(v int) bool { return v%2 == 0 }
	assert.Equal(t, []int{2, 4}, collection.Filter([]int{1, 2, 3, 4}, even))
	assert.Nil(t, collection.Filter([]int{1, 3}, even))
}

func TestChunk(t *testing.T) {
	chunks := collection.Chunk([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
}

func TestChunkNonPositiveSizeReturnsNil(t *testing.T) {
	assert.Nil(t, collection.Chunk([]int{1, 2}, 0))
}

func TestKeyBy(t *testing.T) {
	type item struct{ id, v int }
	items := []item{{1, 10}, {2, 20}, {1, 30}}
	keyed := collection.KeyBy(items, func(i item) int { return i.id })
	assert.Equal(t, item{1, 30}, keyed[1], "last duplicate key wins")
	assert.Equal(t, item{2, 20}, keyed[2])
}
