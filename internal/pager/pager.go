// Package pager implements the federating pager: it fans a
// single federated query out across every requested backend, interleaves
// their per-backend result buffers into one globally-paged stream via the
// drip strategies in internal/drip, and maintains the combined per-query
// cache that lets later pages of the same query resume without re-walking
// already-drained buffers.
package pager

import (
	"context"
	"fmt"
	"time"

	"github.com/oit-uog/solr-federator/internal/backend"
	"github.com/oit-uog/solr-federator/internal/drip"
	"github.com/oit-uog/solr-federator/internal/field"
	"github.com/oit-uog/solr-federator/internal/query"
	"github.com/oit-uog/solr-federator/internal/ttlcache"
	"github.com/oit-uog/solr-federator/pkg/collection"
	"github.com/oit-uog/solr-federator/pkg/metrics"
)

// ValidationError is returned for user-correctable request errors: a
// negative or out-of-range page, or an unresolvable sort column.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Result is one page of federated results, plus the combined facet counts
// and total across every backend queried.
type Result struct {
	Docs        []backend.Document
	FacetCounts map[string]int
	Total       int
	LastPage    int
}

// queryCacheEntry is the per-(collections, sort, direction, query-shape)
// cache row: every page drained so far, the drip cursors where draining
// left off, and any leftover docs short of a full page ("last trickle")
// carried into the next call.
type queryCacheEntry struct {
	Pages         map[int][]backend.Document
	EndingCursors map[string]*drip.Cursor
	FacetCounts   map[string]int
	Total         int
	LastPage      int
	LastTrickle   []backend.Document
}

// Pager fans a query out across the given backend clients.
type Pager struct {
	clients     map[string]*backend.Client
	byShortName map[string]*backend.Client
	model       *field.Model
	rows        int
	cache       *ttlcache.Cache[*queryCacheEntry]
}

// New builds a Pager. clients is keyed by full (discovered) collection
// name; model is the merged/combined field schema used to resolve sort
// tokens.
func New(clients map[string]*backend.Client, model *field.Model, rows int, ttl time.Duration) *Pager {
	all := make([]*backend.Client, 0, len(clients))
	for _, c := range clients {
		all = append(all, c)
	}
	byShort := collection.KeyBy(all, func(c *backend.Client) string { return c.ShortName() })
	return &Pager{
		clients:     clients,
		byShortName: byShort,
		model:       model,
		rows:        rows,
		cache:       ttlcache.New[*queryCacheEntry](ttl),
	}
}

// Reset discards the pager's query cache and rebinds it to a freshly merged
// schema, called whenever the Coordinator detects a backend schema change.
func (p *Pager) Reset(model *field.Model) {
	p.model = model
	p.cache = ttlcache.New[*queryCacheEntry](p.cache.TTL())
}

type apiPager struct {
	client       *backend.Client
	rawTerms     any
	term         *query.Term
	sortSolrname string
	asc          bool
	useCache     bool
	lastPage     *int
}

func (p *apiPager) fetch(ctx context.Context, page int) (*backend.Result, error) {
	if p.lastPage != nil && page > *p.lastPage {
		return nil, fmt.Errorf("pager: page %d exceeds last page %d", page, *p.lastPage)
	}
	res, err := p.client.Query(ctx, p.rawTerms, p.term, true, p.sortSolrname, p.asc, page, p.useCache)
	if err != nil {
		return nil, err
	}
	lp := res.LastPage
	p.lastPage = &lp
	return res, nil
}

// Query runs a federated query across collections (full collection names,
// i.e. Pager's own client keys — the Coordinator is responsible for
// translating user-facing short names before calling this). rawTerms is the
// original decoded query payload (used for cache-key hashing); term is its
// parsed form. sortToken may be empty, a colname, a solrname, or the
// synthetic collection field.
func (p *Pager) Query(ctx context.Context, rawTerms any, term *query.Term, collections []string, sortToken string, asc bool, page int, useCache bool) (*Result, error) {
	if page < 0 {
		return nil, &ValidationError{Msg: "page must not be negative"}
	}

	sortSolrname := ""
	if sortToken != "" {
		resolved, err := p.model.Resolve(sortToken)
		if err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("column %s does not exist", sortToken)}
		}
		sortSolrname = resolved
	}

	key := query.CombinedCacheKey(rawTerms, collections, sortSolrname, asc)

	entry, hit := p.cache.Get(key)
	if hit {
		metrics.CacheHits.WithLabelValues("combined").Inc()
	} else {
		metrics.CacheMisses.WithLabelValues("combined").Inc()
	}

	if hit {
		if docs, ok := entry.Pages[page]; ok {
			needed := flattenUpTo(entry.Pages, page)
			p.rinse(needed)
			return &Result{Docs: docs, FacetCounts: entry.FacetCounts, Total: entry.Total, LastPage: entry.LastPage}, nil
		}
	}

	pagers := make(map[string]*apiPager, len(collections))
	for _, c := range collections {
		client, ok := p.clients[c]
		if !ok {
			return nil, &ValidationError{Msg: fmt.Sprintf("%s is not a collection", c)}
		}
		pagers[c] = &apiPager{client: client, rawTerms: rawTerms, term: term, sortSolrname: sortSolrname, asc: asc, useCache: useCache}
	}

	var cursors map[string]*drip.Cursor
	currentPage := 0

	if hit {
		cursors = entry.EndingCursors
		currentPage = len(entry.Pages)
		if currentPage > 0 {
			p.rinse(flattenUpTo(entry.Pages, currentPage-1))
		}
	} else {
		cursors = make(map[string]*drip.Cursor, len(collections))
		for _, c := range collections {
			cursors[c] = &drip.Cursor{}
		}
	}

	results := make(map[string]*backend.Result, len(collections))
	for _, c := range collections {
		res, err := p.clients[c].Query(ctx, rawTerms, term, true, sortSolrname, asc, cursors[c].BackendPage, true)
		if err != nil {
			return nil, err
		}
		results[c] = res
	}

	if !hit {
		var facetCounts map[string]int
		total := 0
		first := true
		for _, c := range collections {
			r := results[c]
			if first {
				facetCounts = cloneFacets(r.FacetCounts)
				first = false
			} else {
				facetCounts = combineFacetCounts(facetCounts, r.FacetCounts)
			}
			total += r.Total
		}
		entry = &queryCacheEntry{
			Pages:         map[int][]backend.Document{},
			EndingCursors: cursors,
			FacetCounts:   facetCounts,
			Total:         total,
			LastPage:      ceilDiv(total, p.rows) - 1,
		}
	}

	if page > entry.LastPage {
		return nil, &ValidationError{Msg: fmt.Sprintf("last page is %d, requested page was %d", entry.LastPage, page)}
	}

	dripper := drip.Generator(sortSolrname)
	dripStrategy := "random"
	switch sortSolrname {
	case "":
	case field.CollectionSolrname:
		dripStrategy = "collection"
	default:
		dripStrategy = "field"
	}

	docs := entry.LastTrickle
	entry.LastTrickle = nil

	for {
		metrics.DripRounds.WithLabelValues(dripStrategy).Inc()
		docs = append(docs, dripper(results, cursors, collections, asc)...)

		var atEnd []string
		for _, c := range collections {
			r, ok := results[c]
			if !ok {
				continue
			}
			if cursors[c].Offset >= len(r.Docs) {
				atEnd = append(atEnd, c)
			}
		}
		var endAndMorePages []string
		for _, c := range atEnd {
			if cursors[c].BackendPage < results[c].LastPage {
				endAndMorePages = append(endAndMorePages, c)
			}
		}

		p.rinse(docs)

		pages := collection.Chunk(docs, p.rows)

		if len(pages) > 0 && len(pages[len(pages)-1]) < p.rows {
			docs = pages[len(pages)-1]
			pages = pages[:len(pages)-1]
		} else {
			docs = nil
		}

		for _, pg := range pages {
			entry.Pages[currentPage] = pg
			currentPage++
		}

		if len(atEnd) == len(results) {
			if len(endAndMorePages) == 0 {
				if len(docs) > 0 {
					entry.Pages[currentPage] = docs
					currentPage++
					entry.LastTrickle = nil
				}
				break
			}
		}

		if currentPage > page {
			entry.LastTrickle = docs
			break
		}

		for _, c := range endAndMorePages {
			cursors[c].BackendPage++
			cursors[c].Offset = 0
			res, err := pagers[c].fetch(ctx, cursors[c].BackendPage)
			if err != nil {
				return nil, err
			}
			results[c] = res
		}

		for _, c := range atEnd {
			if !contains(endAndMorePages, c) {
				delete(results, c)
			}
		}
	}

	p.cache.Set(key, entry)

	return &Result{
		Docs:        entry.Pages[page],
		FacetCounts: entry.FacetCounts,
		Total:       entry.Total,
		LastPage:    entry.LastPage,
	}, nil
}

// rinse replaces documents with their identity-cached instances, routing
// each to the backend client that owns its "coll" field.
func (p *Pager) rinse(docs []backend.Document) {
	for i, d := range docs {
		coll, _ := d["coll"].(string)
		client, ok := p.byShortName[coll]
		if !ok {
			continue
		}
		docs[i] = client.RinseCacheItems([]backend.Document{d}, true)[0]
	}
}

func flattenUpTo(pages map[int][]backend.Document, last int) []backend.Document {
	var out []backend.Document
	for i := 0; i <= last; i++ {
		out = append(out, pages[i]...)
	}
	return out
}

func cloneFacets(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func combineFacetCounts(a, b map[string]int) map[string]int {
	out := cloneFacets(a)
	for k, v := range b {
		out[k] += v
	}
	return out
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
