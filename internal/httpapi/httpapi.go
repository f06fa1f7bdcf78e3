// Package httpapi is a thin, non-authoritative HTTP bootstrap over
// *coordinator.Coordinator, built with go-chi/chi/v5: middleware chain,
// then one handler per route with no business logic of its own. It exists
// so the core (coordinator, pager, backend, drip, schema, query) can be
// exercised over the wire; it carries no authority over the core's
// contracts.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oit-uog/solr-federator/config"
	"github.com/oit-uog/solr-federator/internal/coordinator"
	"github.com/oit-uog/solr-federator/internal/imagestore"
	"github.com/oit-uog/solr-federator/internal/pager"
	"github.com/oit-uog/solr-federator/pkg/metrics"
	"github.com/oit-uog/solr-federator/pkg/middleware"
	"github.com/oit-uog/solr-federator/pkg/reqid"
	"github.com/oit-uog/solr-federator/pkg/response"
)

// API wires a Coordinator (and optionally an image store, for the
// attachment-proxy route) to an http.Handler.
type API struct {
	co     *coordinator.Coordinator
	images *imagestore.Store
}

// New builds an API over co. images may be nil, disabling the /images
// proxy route.
func New(co *coordinator.Coordinator, images *imagestore.Store) *API {
	return &API{co: co, images: images}
}

// Handler builds the root http.Handler: the full middleware chain, then
// every route.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(metrics.Middleware())
	r.Use(reqid.Middleware())
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: []string{config.AppOrigin()},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimit(600, time.Minute))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/metrics", metrics.Handler())
	r.Get("/settings", a.handleSettings)
	r.Get("/model", a.handleModel)
	r.Get("/search", a.handleSearch)
	r.Get("/search/dump", a.handleSearchDump)
	if a.images != nil {
		r.Get("/images/{coll}/{id}", a.handleImage)
	}

	return r
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !a.co.Ready() {
		response.ServiceUnavailable(w, "backends not yet discovered")
		return
	}
	response.Success(w, map[string]string{"status": "ok"})
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.co.Settings(r.Context())
	if err != nil {
		response.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	response.Success(w, settings)
}

func (a *API) handleModel(w http.ResponseWriter, r *http.Request) {
	poke := r.URL.Query().Get("poke") == "true"
	columns, err := a.co.Model(r.Context(), poke)
	if err != nil {
		response.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	response.Success(w, columns)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	terms, colls, sort, asc, page, err := parseSearchParams(r)
	if err != nil {
		response.ValidationError(w, err.Error())
		return
	}

	result, err := a.co.Query(r.Context(), terms, colls, sort, asc, page)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.Success(w, result)
}

func (a *API) handleSearchDump(w http.ResponseWriter, r *http.Request) {
	terms, colls, _, _, _, err := parseSearchParams(r)
	if err != nil {
		response.ValidationError(w, err.Error())
		return
	}

	result, err := a.co.QueryDump(r.Context(), terms, colls)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.Success(w, result)
}

// handleImage redirects to the resolved URL of a single attachment. coll is
// the collection's short name; id is its attachment id — the pair this
// service's own proxy base URL (imagestore.Store.BaseURL) advertises.
func (a *API) handleImage(w http.ResponseWriter, r *http.Request) {
	coll := chi.URLParam(r, "coll")
	id := chi.URLParam(r, "id")

	url := a.images.PublicURL(r.Context(), coll, id)
	if url == "" {
		response.Error(w, http.StatusNotFound, "attachment not found")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// parseSearchParams decodes the shared /search and /search/dump query
// string shape: q (a JSON-encoded query term: an array, string, or number),
// colls (CSV of short names), sort, asc, page.
func parseSearchParams(r *http.Request) (terms any, colls []string, sort string, asc bool, page int, err error) {
	q := r.URL.Query()

	raw := q.Get("q")
	if raw == "" {
		err = errors.New("q is required")
		return
	}
	if jsonErr := json.Unmarshal([]byte(raw), &terms); jsonErr != nil {
		err = errors.New("q must be valid JSON")
		return
	}

	if c := q.Get("colls"); c != "" {
		for _, tok := range strings.Split(c, ",") {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				colls = append(colls, tok)
			}
		}
	}

	sort = q.Get("sort")
	asc = q.Get("asc") == "" || q.Get("asc") == "true"

	page = 0
	if p := q.Get("page"); p != "" {
		page, err = strconv.Atoi(p)
		if err != nil {
			err = errors.New("page must be an integer")
			return
		}
	}

	return terms, colls, sort, asc, page, nil
}

func writeQueryError(w http.ResponseWriter, err error) {
	var invalid *coordinator.InvalidQueryError
	var validation *pager.ValidationError
	switch {
	case errors.As(err, &invalid):
		response.ValidationError(w, invalid.Error())
	case errors.As(err, &validation):
		response.ValidationError(w, validation.Error())
	default:
		response.Error(w, http.StatusBadGateway, err.Error())
	}
}
