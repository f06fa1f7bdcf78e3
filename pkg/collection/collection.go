// Package collection provides the small set of generic slice helpers the
// drip/pager/coordinator packages need when shuffling per-backend result
// buffers and client maps around: filtering a collection list down to the
// ones with a buffered document left (internal/drip), slicing drained
// results into DEFAULT_QUERY_ROWS-sized global pages (internal/pager), and
// indexing a slice of backend.Clients/backend.Settings by their short name
// (internal/pager, internal/coordinator).
package collection

// Filter returns elements of s for which fn returns true. Used by
// internal/drip to narrow a collection order down to the collections that
// still have a buffered document.
func Filter[T any](s []T, fn func(T) bool) []T {
	var out []T
	for _, v := range s {
		if fn(v) {
			out = append(out, v)
		}
	}
	return out
}

// Chunk splits s into slices of at most n elements. internal/pager uses
// this to cut a round's drained documents into full global pages, holding
// back any under-full remainder as the next trickle.
func Chunk[T any](s []T, n int) [][]T {
	if n <= 0 {
		return nil
	}
	var out [][]T
	for i := 0; i < len(s); i += n {
		end := i + n
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[i:end])
	}
	return out
}

// KeyBy turns s into a map using the key produced by fn. internal/pager and
// internal/coordinator use this to index backend.Clients/backend.Settings
// by their short collection name. If two elements produce the same key,
// the last one wins.
func KeyBy[T any, K comparable](s []T, fn func(T) K) map[K]T {
	out := make(map[K]T, len(s))
	for _, v := range s {
		out[fn(v)] = v
	}
	return out
}
