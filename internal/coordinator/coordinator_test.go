package coordinator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oit-uog/solr-federator/internal/coordinator"
)

// upstream builds a fake upstream serving a collection index page (the HTML
// anchor-list the Coordinator scrapes for discovery) plus a settings,
// fldmodel, and select endpoint per collection.
func upstream(t *testing.T, fldmodels map[string][]map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	var index string
	for c := range fldmodels {
		index += fmt.Sprintf(`<a href="%s">%s</a>`, c, c)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, index)
	})

	for coll, cols := range fldmodels {
		coll := coll
		cols := cols
		mux.HandleFunc("/"+coll+"/resources/config/settings.json", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]map[string]any{{"collectionName": coll}})
		})
		mux.HandleFunc("/"+coll+"/resources/config/fldmodel.json", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(cols)
		})
		mux.HandleFunc("/"+coll+"/select", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"response": map[string]any{
					"numFound": 1,
					"docs":     []map[string]any{{"spid": coll + "-1", "genus": "Carex"}},
				},
			})
		})
	}

	return httptest.NewServer(mux)
}

func genusModel() []map[string]any {
	return []map[string]any{{"colname": "genus", "solrname": "genus", "solrtype": "string"}}
}

func TestCoordinatorStartDiscoversAndMergesBackends(t *testing.T) {
	srv := upstream(t, map[string][]map[string]any{
		"botanyvouchers": genusModel(),
		"herpsvouchers":  genusModel(),
	})
	t.Cleanup(srv.Close)

	co := coordinator.New(srv.URL, 10, time.Minute)
	require.NoError(t, co.Start(context.Background()))
	assert.True(t, co.Ready())

	cols, err := co.Model(context.Background(), false)
	require.NoError(t, err)

	found := false
	for _, c := range cols {
		if c.Colname == "genus" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCoordinatorListCollectionsStripsVouchersSuffix(t *testing.T) {
	srv := upstream(t, map[string][]map[string]any{"botanyvouchers": genusModel()})
	t.Cleanup(srv.Close)

	co := coordinator.New(srv.URL, 10, time.Minute)
	require.NoError(t, co.Start(context.Background()))

	names, err := co.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"botany"}, names)
}

func TestCoordinatorSettingsReturnsPerCollectionSettings(t *testing.T) {
	srv := upstream(t, map[string][]map[string]any{
		"botanyvouchers": genusModel(),
		"herpsvouchers":  genusModel(),
	})
	t.Cleanup(srv.Close)

	co := coordinator.New(srv.URL, 10, time.Minute)
	require.NoError(t, co.Start(context.Background()))

	settings, err := co.Settings(context.Background())
	require.NoError(t, err)
	assert.Contains(t, settings.Collections, "botany")
	assert.Contains(t, settings.Collections, "herps")
	assert.Equal(t, coordinator.SyntaxMap, settings.SearchSyntax)
}

func TestCoordinatorQueryRejectsUnknownCollection(t *testing.T) {
	srv := upstream(t, map[string][]map[string]any{"botanyvouchers": genusModel()})
	t.Cleanup(srv.Close)

	co := coordinator.New(srv.URL, 10, time.Minute)
	require.NoError(t, co.Start(context.Background()))

	_, err := co.Query(context.Background(), []any{"carex"}, []string{"nosuch"}, "", true, 0)
	assert.Error(t, err)
	var invalid *coordinator.InvalidQueryError
	assert.ErrorAs(t, err, &invalid)
}

func TestCoordinatorQueryReturnsFederatedResult(t *testing.T) {
	srv := upstream(t, map[string][]map[string]any{
		"botanyvouchers": genusModel(),
		"herpsvouchers":  genusModel(),
	})
	t.Cleanup(srv.Close)

	co := coordinator.New(srv.URL, 10, time.Minute)
	require.NoError(t, co.Start(context.Background()))

	res, err := co.Query(context.Background(), []any{"carex"}, nil, "", true, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total, "one doc from each of the two backends")
}

func TestCoordinatorQueryDumpBypassesPagerAndCombinesTotals(t *testing.T) {
	srv := upstream(t, map[string][]map[string]any{
		"botanyvouchers": genusModel(),
		"herpsvouchers":  genusModel(),
	})
	t.Cleanup(srv.Close)

	co := coordinator.New(srv.URL, 10, time.Minute)
	require.NoError(t, co.Start(context.Background()))

	res, err := co.QueryDump(context.Background(), []any{"carex"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 0, res.LastPage)
	assert.Len(t, res.Docs, 2)
}

func TestCoordinatorQueryDumpDropsUnknownCollectionsInsteadOfErroring(t *testing.T) {
	srv := upstream(t, map[string][]map[string]any{
		"botanyvouchers": genusModel(),
		"herpsvouchers":  genusModel(),
	})
	t.Cleanup(srv.Close)

	co := coordinator.New(srv.URL, 10, time.Minute)
	require.NoError(t, co.Start(context.Background()))

	res, err := co.QueryDump(context.Background(), []any{"carex"}, []string{"botany", "nosuch"})
	require.NoError(t, err, "querydump ignores colls-validation short-circuits")
	assert.Equal(t, 1, res.Total, "only the resolvable collection is queried")
}

func TestCoordinatorWatchRebindNoOpsWithoutRedis(t *testing.T) {
	srv := upstream(t, map[string][]map[string]any{"botanyvouchers": genusModel()})
	t.Cleanup(srv.Close)

	co := coordinator.New(srv.URL, 10, time.Minute)
	require.NoError(t, co.Start(context.Background()))

	// pkg/cache.SubscribeRebind returns nil when Redis was never configured,
	// so WatchRebind must return immediately rather than block forever.
	done := make(chan struct{})
	go func() {
		co.WatchRebind(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchRebind did not return without a configured Redis client")
	}

	co.DropCombinedCache()
}
