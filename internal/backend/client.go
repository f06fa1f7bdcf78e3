package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oit-uog/solr-federator/internal/field"
	"github.com/oit-uog/solr-federator/internal/query"
	"github.com/oit-uog/solr-federator/internal/ttlcache"
	"github.com/oit-uog/solr-federator/pkg/metrics"
)

// CacheEntry is the per-backend query cache row: one per (sort, direction,
// query-shape) key, holding every page fetched so far plus the facet counts
// and totals computed on the first (page-0) fetch.
type CacheEntry struct {
	FacetCounts map[string]int
	Pages       map[int][]Document
	LastPage    int
	Total       int
}

// Result is what Client.Query returns to its caller (the Pager, or a
// direct querydump request).
type Result struct {
	Docs        []Document
	FacetCounts map[string]int
	LastPage    int
	Total       int
}

// Client is a single backend's API surface: the per-collection search
// index this proxy federates over. One Client is created per discovered
// collection.
type Client struct {
	HTTPClient *http.Client

	baseURL    string
	collection string
	shortName  string
	queryRows  int
	ttl        time.Duration
	facetField string

	mu          sync.RWMutex
	settingsRaw map[string]any
	settings    *Settings
	model       *field.Model
	follow      *field.Model
	stale       bool
	ready       bool

	cache         *ttlcache.Cache[*CacheEntry]
	identityCache *ttlcache.Cache[Document]
}

// NewClient constructs a Client for one collection. baseURL is the
// upstream root; collection is the path segment discovered by the
// Coordinator.
func NewClient(baseURL, collection string, queryRows int, ttl time.Duration) *Client {
	return &Client{
		HTTPClient: http.DefaultClient,
		baseURL:    strings.TrimRight(baseURL, "/") + "/" + strings.Trim(collection, "/"),
		collection: collection,
		shortName:  strings.ReplaceAll(collection, "vouchers", ""),
		queryRows:  queryRows,
		ttl:        ttl,
		facetField: "geoc",
		stale:      true,
	}
}

// WithFacetField overrides the collection-identity facet field used for
// geo_count-style pass-through facets; defaults to "geoc".
func (c *Client) WithFacetField(f string) *Client {
	c.facetField = f
	return c
}

// ShortName is the user-facing collection name (the "vouchers" suffix
// stripped).
func (c *Client) ShortName() string { return c.shortName }

// Ready reports whether Start has completed successfully.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Model returns the client's current field model. Nil until Start or
// fetchModel has run at least once.
func (c *Client) Model() *field.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Stale reports whether this client's model has changed since it was last
// bound to a merged schema via SetFollowModel.
func (c *Client) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// Start fetches settings and the field model, then enables querying.
func (c *Client) Start(ctx context.Context) error {
	if _, err := c.Settings(ctx); err != nil {
		return fmt.Errorf("backend %s: start: settings: %w", c.collection, err)
	}
	if err := c.fetchModel(ctx); err != nil {
		return fmt.Errorf("backend %s: start: model: %w", c.collection, err)
	}

	c.mu.Lock()
	c.ready = true
	c.cache = ttlcache.New[*CacheEntry](c.ttl)
	c.identityCache = ttlcache.New[Document](c.ttl)
	c.mu.Unlock()
	return nil
}

// Settings fetches (and caches) this backend's settings document.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	var raw []Settings
	if err := c.getJSON(ctx, "/resources/config/settings.json", nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("backend %s: empty settings document", c.collection)
	}
	s := raw[0]
	s.ShortName = c.shortName

	c.mu.Lock()
	c.settings = &s
	c.mu.Unlock()
	return &s, nil
}

// fetchModel fetches the backend's fldmodel.json, rebuilding the field
// model and marking the client stale whenever the raw document changed.
func (c *Client) fetchModel(ctx context.Context) error {
	var cols []field.Input
	if err := c.getJSON(ctx, "/resources/config/fldmodel.json", nil, &cols); err != nil {
		return err
	}

	built := make([]*field.Column, 0, len(cols))
	for _, in := range cols {
		col, err := field.NewColumn(in)
		if err != nil {
			return fmt.Errorf("backend %s: column %q: %w", c.collection, in.Colname, err)
		}
		built = append(built, col)
	}

	model, err := field.NewModel(built...)
	if err != nil {
		return fmt.Errorf("backend %s: field model: %w", c.collection, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model != nil && reflect.DeepEqual(c.model.Columns(), model.Columns()) {
		return nil
	}
	c.model = model
	c.stale = true
	return nil
}

// CheckIfStale re-polls the field model and reports whether this client's
// schema has drifted since its last SetFollowModel call.
func (c *Client) CheckIfStale(ctx context.Context) (bool, error) {
	if err := c.fetchModel(ctx); err != nil {
		return false, err
	}
	return c.Stale(), nil
}

// SetFollowModel binds this client's field model to the merged/combined
// schema, enabling Resolve to translate merged-schema field names back to
// this backend's own solrnames.
func (c *Client) SetFollowModel(follow *field.Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.model.RebindTo(follow); err != nil {
		return err
	}
	c.follow = follow
	c.stale = false
	return nil
}

// Query runs a query against this backend with two-tier caching: a cache
// miss (or disabled cache) always fans out with facet counts requested; a
// cache hit serves a previously-fetched page directly, or fetches just that
// one missing page without facets.
func (c *Client) Query(ctx context.Context, rawTerms any, term *query.Term, ignoreMissing bool, sortToken string, asc bool, page int, useCache bool) (*Result, error) {
	model := c.Model()

	sortSolrname, useSort, err := query.ResolveSort(sortToken, model, ignoreMissing)
	if err != nil {
		return nil, err
	}
	if !useSort {
		sortSolrname = ""
	}

	if !useCache {
		return c.query(ctx, term, ignoreMissing, true, sortSolrname, asc, page)
	}

	key := query.CacheKey(rawTerms, sortSolrname, asc)

	entry, hit := c.cache.Get(key)
	if hit {
		metrics.CacheHits.WithLabelValues("backend").Inc()
	} else {
		metrics.CacheMisses.WithLabelValues("backend").Inc()
	}
	fresh := false
	var docs []Document

	if hit {
		if page > entry.LastPage {
			docs = nil
		} else if cached, ok := entry.Pages[page]; ok {
			docs = cached
		} else {
			raw, err := c.query(ctx, term, ignoreMissing, false, sortSolrname, asc, page)
			if err != nil {
				return nil, err
			}
			docs = raw.Docs
			entry.Pages[page] = docs
			fresh = true
		}
	} else {
		raw, err := c.query(ctx, term, ignoreMissing, true, sortSolrname, asc, page)
		if err != nil {
			return nil, err
		}
		docs = raw.Docs
		entry = &CacheEntry{
			FacetCounts: raw.FacetCounts,
			Pages:       map[int][]Document{page: docs},
			LastPage:    raw.LastPage,
			Total:       raw.Total,
		}
		c.cache.Set(key, entry)
		fresh = true
	}

	docs = c.RinseCacheItems(docs, fresh)

	return &Result{
		Docs:        docs,
		FacetCounts: entry.FacetCounts,
		LastPage:    entry.LastPage,
		Total:       entry.Total,
	}, nil
}

// RinseCacheItems, when deep is true, replaces each document with its
// identity-cached instance when one already exists and seeds the cache with
// any document not yet present, deduplicating repeated documents across
// overlapping pages to save memory. When deep is false it returns items
// unchanged.
func (c *Client) RinseCacheItems(items []Document, deep bool) []Document {
	for i, it := range items {
		spid := fmt.Sprintf("%v", it["spid"])
		cached, ok := c.identityCache.Get(spid)
		if deep {
			if ok {
				metrics.CacheHits.WithLabelValues("identity").Inc()
				items[i] = cached
			} else {
				metrics.CacheMisses.WithLabelValues("identity").Inc()
				c.identityCache.Set(spid, it)
			}
		}
	}
	return items
}

// query performs the actual HTTP call to the backend's /select endpoint and
// post-processes the returned documents.
func (c *Client) query(ctx context.Context, term *query.Term, ignoreMissing bool, geoCount bool, sortSolrname string, asc bool, page int) (*Result, error) {
	start := time.Now()
	result, err := c.doQuery(ctx, term, ignoreMissing, geoCount, sortSolrname, asc, page)
	metrics.ObserveBackendQuery(c.shortName, start, err)
	return result, err
}

func (c *Client) doQuery(ctx context.Context, term *query.Term, ignoreMissing bool, geoCount bool, sortSolrname string, asc bool, page int) (*Result, error) {
	model := c.Model()

	rendered, err := query.Translate(term, model, ignoreMissing)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("wt", "json")
	params.Set("q", rendered)
	params.Set("rows", strconv.Itoa(c.queryRows))
	params.Set("start", strconv.Itoa(page*c.queryRows))
	if geoCount {
		params.Set("facet", "on")
		params.Set("facet.field", c.facetField)
		params.Set("facet.limit", "-1")
		params.Set("facet.mincount", "1")
	}
	if sortSolrname != "" {
		dir := "desc"
		if asc {
			dir = "asc"
		}
		params.Set("sort", fmt.Sprintf("%s %s", sortSolrname, dir))
	}

	var resp selectResponse
	if err := c.getJSON(ctx, "/select", params, &resp); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(resp.Response.Docs))
	for _, raw := range resp.Response.Docs {
		doc, err := postProcess(raw, model, c.shortName)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	lastPage := ceilDiv(resp.Response.NumFound, c.queryRows) - 1
	if lastPage < 0 {
		lastPage = 0
	}

	result := &Result{
		Docs:     docs,
		LastPage: lastPage,
		Total:    resp.Response.NumFound,
	}

	if geoCount {
		result.FacetCounts = flattenFacets(resp.FacetCounts.FacetFields[c.facetField])
	}

	return result, nil
}

type selectResponse struct {
	Response struct {
		NumFound int              `json:"numFound"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	FacetCounts struct {
		FacetFields map[string][]any `json:"facet_fields"`
	} `json:"facet_counts"`
}

func flattenFacets(pairs []any) map[string]int {
	out := make(map[string]int, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k := fmt.Sprintf("%v", pairs[i])
		var v int
		switch t := pairs[i+1].(type) {
		case float64:
			v = int(t)
		}
		out[k] = v
	}
	return out
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	u := c.baseURL + path
	if params != nil {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s: request %s: %w", c.collection, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Collection: c.collection, Path: path, Status: resp.StatusCode}
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

// HTTPError is returned when a backend responds with a non-2xx status.
type HTTPError struct {
	Collection string
	Path       string
	Status     int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend %s: %s returned status %d", e.Collection, e.Path, e.Status)
}

