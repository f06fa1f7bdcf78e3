package query

import (
	"fmt"
	"sort"
)

// DeepHash canonicalizes a decoded query term value (the raw JSON structure
// before parsing into a Term tree) so that two structurally-equal-but-
// differently-ordered queries produce the same cache key. Every list, at
// every depth, is sorted by the string form of its (already-canonicalized)
// elements — not just the top level.
func DeepHash(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}

	out := make([]any, len(list))
	for i, e := range list {
		out[i] = DeepHash(e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return renderForSort(out[i]) < renderForSort(out[j])
	})
	return out
}

func renderForSort(v any) string {
	return fmt.Sprintf("%v", v)
}

// CacheKey builds the stable string cache key for a single query shape:
// sort direction, sort field, and the deep-hashed query terms — the
// composite key a per-backend cache entry is keyed by.
func CacheKey(queryTerms any, sortField string, asc bool) string {
	dir := 1
	if asc {
		dir = 0
	}
	return fmt.Sprintf("%v", []any{dir, sortField, DeepHash(queryTerms)})
}

// CombinedCacheKey builds the cache key for the combined/global cache
// entry, which additionally varies on the sorted set of collections queried.
func CombinedCacheKey(queryTerms any, collections []string, sortField string, asc bool) string {
	sorted := append([]string(nil), collections...)
	sort.Strings(sorted)

	dir := 1
	if asc {
		dir = 0
	}
	return fmt.Sprintf("%v", []any{sorted, dir, sortField, DeepHash(queryTerms)})
}
