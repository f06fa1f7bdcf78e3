// Package coordinator implements the Coordinator: backend discovery,
// schema lifecycle, and the handful of public operations (settings,
// model, query, querydump) the bootstrap HTTP layer exposes.
package coordinator

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oit-uog/solr-federator/internal/audit"
	"github.com/oit-uog/solr-federator/internal/backend"
	"github.com/oit-uog/solr-federator/internal/field"
	"github.com/oit-uog/solr-federator/internal/imagestore"
	"github.com/oit-uog/solr-federator/internal/pager"
	"github.com/oit-uog/solr-federator/internal/query"
	"github.com/oit-uog/solr-federator/internal/schema"
	"github.com/oit-uog/solr-federator/pkg/cache"
	"github.com/oit-uog/solr-federator/pkg/collection"
	"github.com/oit-uog/solr-federator/pkg/logger"
	"github.com/oit-uog/solr-federator/pkg/metrics"
)

var collectionPattern = regexp.MustCompile(`<a href="(.*?)"`)

// SyntaxMap is the fixed "search_syntax" value every settings() response
// carries, telling clients which integer tags mean OR and AND.
var SyntaxMap = map[string]int{"OR": query.SyntaxOR, "AND": query.SyntaxAND}

// InvalidQueryError is returned for user-correctable request errors: an
// unknown collection token or a malformed query. Page and sort errors come
// back from the Pager as *pager.ValidationError.
type InvalidQueryError struct {
	Msg string
}

func (e *InvalidQueryError) Error() string { return e.Msg }

// Settings is the combined settings() response shape.
type Settings struct {
	SearchSyntax map[string]int              `json:"search_syntax"`
	Collections  map[string]*backend.Settings `json:"collections"`
}

// Result mirrors pager.Result for the Coordinator's public query/querydump
// operations.
type Result struct {
	Docs        []backend.Document `json:"docs"`
	FacetCounts map[string]int     `json:"facet_counts"`
	Total       int                `json:"total"`
	LastPage    int                `json:"last_page"`
}

// Coordinator owns backend discovery, the merged schema, and the query
// pager built on top of it. One Coordinator is constructed per process.
type Coordinator struct {
	HTTPClient *http.Client

	baseURL   string
	queryRows int
	cacheTTL  time.Duration

	mu          sync.RWMutex
	ready       bool
	clients     map[string]*backend.Client // full collection name -> client
	shortNames  map[string]string          // short name -> full name
	collections []string                   // full names, discovery order
	model       *field.Model
	pager       *pager.Pager

	images *imagestore.Store
	audit  *audit.Recorder
}

// New builds a Coordinator targeting baseURL, the upstream root whose
// anchor tags list the available collections.
func New(baseURL string, queryRows int, cacheTTL time.Duration) *Coordinator {
	return &Coordinator{
		HTTPClient: http.DefaultClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		queryRows:  queryRows,
		cacheTTL:   cacheTTL,
	}
}

// SetImageStore attaches the object store used to enrich each collection's
// Settings.ImageBaseURL. A nil store (or never calling this) leaves
// ImageBaseURL untouched.
func (co *Coordinator) SetImageStore(s *imagestore.Store) { co.images = s }

// SetAuditRecorder attaches the optional query-audit trail. A nil recorder
// (or never calling this) disables auditing.
func (co *Coordinator) SetAuditRecorder(r *audit.Recorder) { co.audit = r }

// Ready reports whether Start has completed successfully at least once.
func (co *Coordinator) Ready() bool {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.ready
}

// Start discovers backends, starts a Client per collection, merges their
// schemas, and builds the Pager.
func (co *Coordinator) Start(ctx context.Context) error {
	collections, err := co.listCollections(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: start: discover collections: %w", err)
	}

	clients := make(map[string]*backend.Client, len(collections))
	for _, c := range collections {
		clients[c] = backend.NewClient(co.baseURL, c, co.queryRows, co.cacheTTL)
	}
	for _, c := range collections {
		if err := clients[c].Start(ctx); err != nil {
			return fmt.Errorf("coordinator: start: backend %s: %w", c, err)
		}
	}

	shortNames := make(map[string]string, len(collections))
	for _, c := range collections {
		shortNames[strings.ReplaceAll(c, "vouchers", "")] = c
	}

	co.mu.Lock()
	co.clients = clients
	co.collections = collections
	co.shortNames = shortNames
	co.mu.Unlock()

	if err := co.syncModels(ctx); err != nil {
		return fmt.Errorf("coordinator: start: sync models: %w", err)
	}

	co.mu.Lock()
	co.ready = true
	co.mu.Unlock()
	return nil
}

// listCollections issues one GET to the base URL and extracts every anchor
// href as a discovered collection name.
func (co *Coordinator) listCollections(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, co.baseURL+"/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := co.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	matches := collectionPattern.FindAllStringSubmatch(string(body), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out, nil
}

// ListCollections returns the user-facing ("vouchers"-stripped) collection
// names, best-effort refreshing the discovered set (and scheduling a full
// Start in the background) if it has drifted.
func (co *Coordinator) ListCollections(ctx context.Context) ([]string, error) {
	discovered, err := co.listCollections(ctx)
	if err != nil {
		return nil, err
	}

	co.mu.RLock()
	current := append([]string(nil), co.collections...)
	co.mu.RUnlock()

	if !sameSet(current, discovered) {
		go func() {
			_ = co.Start(context.Background())
		}()
	}

	out := make([]string, 0, len(discovered))
	for _, c := range discovered {
		out = append(out, strings.ReplaceAll(c, "vouchers", ""))
	}
	sort.Strings(out)
	return out, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

// Settings re-examines the collection set, then asks every backend for its
// settings document in parallel.
func (co *Coordinator) Settings(ctx context.Context) (*Settings, error) {
	if _, err := co.ListCollections(ctx); err != nil {
		return nil, err
	}

	var cached Settings
	if cache.GetSettings(co.baseURL, &cached) {
		return &cached, nil
	}

	co.mu.RLock()
	clients := make([]*backend.Client, 0, len(co.clients))
	for _, c := range co.clients {
		clients = append(clients, c)
	}
	co.mu.RUnlock()

	type outcome struct {
		settings *backend.Settings
		err      error
	}
	results := make([]outcome, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *backend.Client) {
			defer wg.Done()
			s, err := c.Settings(ctx)
			results[i] = outcome{settings: s, err: err}
		}(i, c)
	}
	wg.Wait()

	settingsList := make([]*backend.Settings, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if co.images != nil {
			r.settings.ImageBaseURL = co.images.BaseURL(r.settings.ShortName, r.settings.ImageBaseURL)
		}
		settingsList = append(settingsList, r.settings)
	}
	collections := collection.KeyBy(settingsList, func(s *backend.Settings) string { return s.ShortName })

	result := &Settings{SearchSyntax: SyntaxMap, Collections: collections}
	_ = cache.SetSettings(co.baseURL, result)
	return result, nil
}

// Model returns the merged schema's columns, re-merging first if poke is
// true and any backend reports a stale field model.
func (co *Coordinator) Model(ctx context.Context, poke bool) ([]*field.Column, error) {
	co.mu.RLock()
	clients := make([]*backend.Client, 0, len(co.clients))
	for _, c := range co.clients {
		clients = append(clients, c)
	}
	co.mu.RUnlock()

	stalePoke := false
	if poke {
		for _, c := range clients {
			stale, err := c.CheckIfStale(ctx)
			if err != nil {
				return nil, err
			}
			if stale {
				stalePoke = true
			}
		}
	}

	anyStale := stalePoke
	if !anyStale {
		for _, c := range clients {
			if c.Stale() {
				anyStale = true
				break
			}
		}
	}

	if anyStale {
		if err := co.syncModels(ctx); err != nil {
			return nil, err
		}
	}

	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.model.Columns(), nil
}

// syncModels left-folds the Merger over every client's column model in
// discovery order, rebinds every client to the result, rebuilds the Pager
// (dropping its combined cache), and installs the new merged model.
func (co *Coordinator) syncModels(ctx context.Context) error {
	co.mu.RLock()
	collections := append([]string(nil), co.collections...)
	clients := co.clients
	co.mu.RUnlock()

	if len(collections) == 0 {
		return fmt.Errorf("coordinator: no backends discovered")
	}

	combined := clients[collections[0]].Model()
	for _, c := range collections[1:] {
		merged, err := schema.Merge(combined, clients[c].Model())
		if err != nil {
			return fmt.Errorf("coordinator: merge schema for %s: %w", c, err)
		}
		combined = merged
	}

	for _, c := range collections {
		if err := clients[c].SetFollowModel(combined); err != nil {
			return fmt.Errorf("coordinator: rebind %s: %w", c, err)
		}
	}

	metrics.SchemaRebinds.Inc()
	_ = cache.PublishRebind(schemaChecksum(combined))

	co.mu.Lock()
	co.model = combined
	co.pager = pager.New(co.clients, combined, co.queryRows, co.cacheTTL)
	co.mu.Unlock()
	return nil
}

// DropCombinedCache resets the Pager's combined-query cache without
// touching the merged model it's bound to, so already-cached pages aren't
// served once some other replica's syncModels has moved the schema out
// from under them.
func (co *Coordinator) DropCombinedCache() {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.pager != nil && co.model != nil {
		co.pager.Reset(co.model)
	}
}

// WatchRebind subscribes to pkg/cache's RebindChannel and drops this
// replica's combined cache on every checksum another replica publishes via
// PublishRebind, so results converge without this replica independently
// polling every backend for staleness. It blocks until ctx is cancelled or
// the subscription closes; a no-op (returns immediately) when Redis was
// never configured.
func (co *Coordinator) WatchRebind(ctx context.Context) {
	sub := cache.SubscribeRebind(ctx)
	if sub == nil {
		return
	}
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			logger.Info("coordinator: schema rebind announced by another replica, dropping combined cache", "checksum", msg.Payload)
			co.DropCombinedCache()
		}
	}
}

// schemaChecksum is an opaque fingerprint of a merged schema's shape, cheap
// enough to compute on every rebind and stable across equivalent schemas.
func schemaChecksum(m *field.Model) string {
	h := fnv.New64a()
	for _, c := range m.Columns() {
		_, _ = h.Write([]byte(c.Colname))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(c.Solrname))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum64())
}

// resolveCollections translates a possibly-empty list of user-facing
// (short) collection tokens into full collection names, defaulting to every
// discovered collection when empty.
func (co *Coordinator) resolveCollections(tokens []string) ([]string, error) {
	co.mu.RLock()
	defer co.mu.RUnlock()

	if len(tokens) == 0 {
		return append([]string(nil), co.collections...), nil
	}

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		full, ok := co.shortNames[t]
		if !ok {
			full = t
		}
		found := false
		for _, c := range co.collections {
			if c == full {
				found = true
				break
			}
		}
		if !found {
			return nil, &InvalidQueryError{Msg: fmt.Sprintf("%s is not a collection", t)}
		}
		out = append(out, full)
	}
	return out, nil
}

// resolveCollectionsDump is resolveCollections without the validation
// short-circuit querydump is documented to skip: unresolvable tokens are
// dropped rather than rejected, and an empty token list still defaults to
// every discovered collection.
func (co *Coordinator) resolveCollectionsDump(tokens []string) []string {
	co.mu.RLock()
	defer co.mu.RUnlock()

	if len(tokens) == 0 {
		return append([]string(nil), co.collections...)
	}

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		full, ok := co.shortNames[t]
		if !ok {
			full = t
		}
		for _, c := range co.collections {
			if c == full {
				out = append(out, full)
				break
			}
		}
	}
	return out
}

// Query delegates to the Pager after translating the caller's short
// collection names to full ones.
func (co *Coordinator) Query(ctx context.Context, rawTerms any, collTokens []string, sortToken string, asc bool, page int) (*Result, error) {
	term, err := query.Parse(rawTerms)
	if err != nil {
		return nil, &InvalidQueryError{Msg: err.Error()}
	}

	collections, err := co.resolveCollections(collTokens)
	if err != nil {
		return nil, err
	}

	co.mu.RLock()
	p := co.pager
	co.mu.RUnlock()

	start := time.Now()
	res, err := p.Query(ctx, rawTerms, term, collections, sortToken, asc, page, true)
	if err != nil {
		return nil, err
	}
	if co.audit != nil {
		co.audit.Record(ctx, collTokens, sortToken, page, res.Total, time.Since(start))
	}
	return &Result{Docs: res.Docs, FacetCounts: res.FacetCounts, Total: res.Total, LastPage: res.LastPage}, nil
}

// QueryDump bypasses collection-filter short-circuiting and pager cursor
// state entirely: it issues one direct, cache-free, facet-counting query to
// every selected backend and returns page 0.
func (co *Coordinator) QueryDump(ctx context.Context, rawTerms any, collTokens []string) (*Result, error) {
	term, err := query.Parse(rawTerms)
	if err != nil {
		return nil, &InvalidQueryError{Msg: err.Error()}
	}

	collections := co.resolveCollectionsDump(collTokens)

	co.mu.RLock()
	clients := co.clients
	co.mu.RUnlock()

	var docs []backend.Document
	var facetCounts map[string]int
	total := 0
	first := true

	for _, c := range collections {
		res, err := clients[c].Query(ctx, rawTerms, term, true, "", false, 0, false)
		if err != nil {
			return nil, err
		}
		docs = append(docs, res.Docs...)
		total += res.Total
		if first {
			facetCounts = res.FacetCounts
			first = false
		} else {
			for k, v := range res.FacetCounts {
				facetCounts[k] += v
			}
		}
	}

	return &Result{Docs: docs, FacetCounts: facetCounts, Total: total, LastPage: 0}, nil
}
