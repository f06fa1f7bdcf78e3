// Package drip implements the three interleaving ("dripping") strategies
// the federating pager uses to merge per-backend result buffers into one
// globally-ordered stream.
package drip

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/oit-uog/solr-federator/internal/backend"
	"github.com/oit-uog/solr-federator/internal/field"
	"github.com/oit-uog/solr-federator/pkg/collection"
)

// Cursor tracks, per collection, which backend page is currently buffered
// (BackendPage) and how far into that page's buffer the drip has already
// consumed (Offset).
type Cursor struct {
	BackendPage int
	Offset      int
}

// Func drains as much of the current per-backend buffers as the chosen
// strategy allows in one pass, advancing the given cursors' Offset fields
// as it goes, and returns the docs it pulled in emission order. It always
// stops at the first buffer it finds exhausted — the caller (the Pager) is
// responsible for re-fetching that collection's next page and calling
// again.
type Func func(results map[string]*backend.Result, cursors map[string]*Cursor, order []string, asc bool) []backend.Document

// Generator picks the drip strategy for a sort token: no sort field means
// randomized weighted interleaving; the synthetic collection field means
// grouping by collection; anything else means ordering by that field's
// value across all buffers.
func Generator(sortSolrname string) Func {
	switch sortSolrname {
	case "":
		return RandomDrip
	case field.CollectionSolrname:
		return CollectionDrip
	default:
		return FieldDrip(sortSolrname)
	}
}

func buffers(results map[string]*backend.Result) map[string][]backend.Document {
	out := make(map[string][]backend.Document)
	for c, r := range results {
		if len(r.Docs) > 0 {
			out[c] = r.Docs
		}
	}
	return out
}

// RandomDrip interleaves collections using a weighted random choice (weight
// = each collection's total result count), seeded deterministically from
// the spid of the first document in lexical-collection order so repeated
// calls against the same buffers are reproducible.
func RandomDrip(results map[string]*backend.Result, cursors map[string]*Cursor, order []string, asc bool) []backend.Document {
	bufs := buffers(results)
	if len(bufs) == 0 {
		return nil
	}

	keys := collection.Filter(order, func(c string) bool { _, ok := bufs[c]; return ok })
	sort.Strings(keys)

	weights := make([]int, len(keys))
	for i, c := range keys {
		weights[i] = results[c].Total
	}

	seedVal := fmt.Sprintf("%v", bufs[keys[0]][0]["spid"])
	rng := rand.New(rand.NewSource(hashSeed(seedVal)))

	var out []backend.Document
	for {
		ready := true
		for _, c := range keys {
			if cursors[c].Offset >= len(bufs[c]) {
				ready = false
				break
			}
		}
		if !ready {
			return out
		}

		chosen := keys[weightedChoice(rng, weights)]
		out = append(out, bufs[chosen][cursors[chosen].Offset])
		cursors[chosen].Offset++
	}
}

// CollectionDrip drains exactly one collection's buffer completely (the
// lexically first, or last if !asc), then stops — letting the Pager advance
// that collection's page and call again for the next one in order.
func CollectionDrip(results map[string]*backend.Result, cursors map[string]*Cursor, order []string, asc bool) []backend.Document {
	bufs := buffers(results)
	if len(bufs) == 0 {
		return nil
	}

	keys := collection.Filter(order, func(c string) bool { _, ok := bufs[c]; return ok })
	sort.Strings(keys)
	if !asc {
		reverse(keys)
	}

	c := keys[0]
	var out []backend.Document
	for cursors[c].Offset < len(bufs[c]) {
		out = append(out, bufs[c][cursors[c].Offset])
		cursors[c].Offset++
	}
	return out
}

// FieldDrip returns a Func that repeatedly emits the min (or max, if !asc)
// current item across every buffered collection by the given field,
// stopping the moment any one buffer runs out.
func FieldDrip(solrname string) Func {
	return func(results map[string]*backend.Result, cursors map[string]*Cursor, order []string, asc bool) []backend.Document {
		bufs := buffers(results)
		if len(bufs) == 0 {
			return nil
		}

		keys := orderedKeys(bufs, order)

		var out []backend.Document
		for {
			type candidate struct {
				coll string
				doc  backend.Document
			}
			var candidates []candidate
			ok := true
			for _, c := range keys {
				if cursors[c].Offset >= len(bufs[c]) {
					ok = false
					break
				}
				candidates = append(candidates, candidate{coll: c, doc: bufs[c][cursors[c].Offset]})
			}
			if !ok {
				return out
			}

			best := candidates[0]
			for _, cand := range candidates[1:] {
				cmp := compareValues(cand.doc[solrname], best.doc[solrname])
				if (asc && cmp < 0) || (!asc && cmp > 0) {
					best = cand
				}
			}
			out = append(out, best.doc)
			cursors[best.coll].Offset++
		}
	}
}

// orderedKeys returns the keys of bufs in the order they appear in order —
// the caller-supplied collection list, so field-drip ties break by that
// order rather than by map iteration order.
func orderedKeys(bufs map[string][]backend.Document, order []string) []string {
	return collection.Filter(order, func(c string) bool { _, ok := bufs[c]; return ok })
}

func compareValues(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func hashSeed(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

func weightedChoice(rng *rand.Rand, weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	r := rng.Intn(total)
	cum := 0
	for i, w := range weights {
		if w > 0 {
			cum += w
		}
		if r < cum {
			return i
		}
	}
	return len(weights) - 1
}
