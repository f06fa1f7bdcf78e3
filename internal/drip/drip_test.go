package drip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oit-uog/solr-federator/internal/backend"
	"github.com/oit-uog/solr-federator/internal/drip"
	"github.com/oit-uog/solr-federator/internal/field"
)

func docs(coll string, n int) []backend.Document {
	out := make([]backend.Document, n)
	for i := range out {
		out[i] = backend.Document{"spid": i, "coll": coll}
	}
	return out
}

func results(bufs map[string][]backend.Document) map[string]*backend.Result {
	out := make(map[string]*backend.Result, len(bufs))
	for c, d := range bufs {
		out[c] = &backend.Result{Docs: d, Total: len(d)}
	}
	return out
}

func cursors(order ...string) map[string]*drip.Cursor {
	out := make(map[string]*drip.Cursor, len(order))
	for _, c := range order {
		out[c] = &drip.Cursor{}
	}
	return out
}

func collNames(got []backend.Document) []string {
	out := make([]string, len(got))
	for i, d := range got {
		out[i], _ = d["coll"].(string)
	}
	return out
}

func TestCollectionDripDrainsOneCollectionThenStops(t *testing.T) {
	res := results(map[string][]backend.Document{
		"a": docs("a", 2),
		"b": docs("b", 3),
	})
	cur := cursors("a", "b")

	out := drip.CollectionDrip(res, cur, []string{"a", "b"}, false)

	assert.Equal(t, []string{"b", "b", "b"}, collNames(out), "!asc picks the lexically last collection first")
	assert.Equal(t, 3, cur["b"].Offset)
	assert.Equal(t, 0, cur["a"].Offset)
}

func TestCollectionDripAscendingPicksLexicallyFirst(t *testing.T) {
	res := results(map[string][]backend.Document{
		"a": docs("a", 2),
		"b": docs("b", 3),
	})
	cur := cursors("a", "b")

	out := drip.CollectionDrip(res, cur, []string{"a", "b"}, true)

	assert.Equal(t, []string{"a", "a"}, collNames(out))
}

func TestFieldDripStopsAtFirstExhaustedBuffer(t *testing.T) {
	a := []backend.Document{{"spid": 1, "coll": "a", "genus": "bbb"}, {"spid": 2, "coll": "a", "genus": "ddd"}}
	b := []backend.Document{{"spid": 3, "coll": "b", "genus": "aaa"}}
	res := results(map[string][]backend.Document{"a": a, "b": b})
	cur := cursors("a", "b")

	dripper := drip.FieldDrip("genus")
	out := dripper(res, cur, []string{"a", "b"}, true)

	require := assert.New(t)
	require.Len(out, 1)
	require.Equal("aaa", out[0]["genus"])
	require.Equal("bbb", a[cur["a"].Offset]["genus"], "a's first doc is still buffered")
	require.Equal(0, cur["a"].Offset, "stopped because b ran out before a's first doc was emitted")
	require.Equal(1, cur["b"].Offset)
}

func TestFieldDripDescending(t *testing.T) {
	a := []backend.Document{{"spid": 1, "coll": "a", "genus": "bbb"}}
	b := []backend.Document{{"spid": 2, "coll": "b", "genus": "aaa"}}
	res := results(map[string][]backend.Document{"a": a, "b": b})
	cur := cursors("a", "b")

	dripper := drip.FieldDrip("genus")
	out := dripper(res, cur, []string{"a", "b"}, false)

	assert.Len(t, out, 1)
	assert.Equal(t, "bbb", out[0]["genus"])
}

func TestRandomDripStopsAtFirstExhaustedBuffer(t *testing.T) {
	a := docs("a", 2)
	b := docs("b", 2)
	res := results(map[string][]backend.Document{"a": a, "b": b})
	cur := cursors("a", "b")

	out := drip.RandomDrip(res, cur, []string{"a", "b"}, true)

	assert.Len(t, out, 3)
	assert.Equal(t, 2, cur["a"].Offset)
	assert.Equal(t, 1, cur["b"].Offset)
}

func TestRandomDripIsDeterministicForTheSameBuffers(t *testing.T) {
	newState := func() (map[string]*backend.Result, map[string]*drip.Cursor) {
		a := docs("a", 3)
		b := docs("b", 3)
		return results(map[string][]backend.Document{"a": a, "b": b}), cursors("a", "b")
	}

	res1, cur1 := newState()
	out1 := drip.RandomDrip(res1, cur1, []string{"a", "b"}, true)

	res2, cur2 := newState()
	out2 := drip.RandomDrip(res2, cur2, []string{"a", "b"}, true)

	assert.Equal(t, collNames(out1), collNames(out2))
}

func TestGeneratorPicksStrategyBySortToken(t *testing.T) {
	_ = drip.Generator("")
	_ = drip.Generator(field.CollectionSolrname)
	_ = drip.Generator("genus")
	// Generator never errors; this just guards against a panic on construction.
}
