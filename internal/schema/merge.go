// Package schema implements the Schema Merger: combining two FieldModels'
// display orderings into one, and combining the columns themselves where
// both schemas define the same field.
package schema

import "sort"

// entry is the list element sortPlace and mergeOrder operate on: a column
// identity (key) and its requested display position (value, nil if unset).
type entry struct {
	key   string
	value *int
}

// sortPlace orders entries by value ascending, then re-inserts every entry
// whose value is nil back at its original index in the input list. This
// mirrors how a partially-numbered display order (some columns pinned to a
// position, others not) gets linearized: pinned columns sort among
// themselves, unpinned ones stay near where they started.
func sortPlace(a []entry) []entry {
	type unplaced struct {
		origIndex int
		e         entry
	}

	var numbered []entry
	var unnumbered []unplaced

	for i, e := range a {
		if e.value == nil {
			unnumbered = append(unnumbered, unplaced{origIndex: i, e: e})
		} else {
			numbered = append(numbered, e)
		}
	}

	sort.SliceStable(numbered, func(i, j int) bool {
		return *numbered[i].value < *numbered[j].value
	})

	out := append([]entry{}, numbered...)
	for _, u := range unnumbered {
		pos := u.origIndex
		if pos > len(out) {
			pos = len(out)
		}
		out = append(out, entry{})
		copy(out[pos+1:], out[pos:])
		out[pos] = u.e
	}
	return out
}

// slot is one position in a's or b's list during the merge walk: either a
// real entry, or the "exhausted" sentinel once a list runs out.
type slot struct {
	present bool
	key     string
	value   *int
}

func at(list []entry, i int) slot {
	if i < 0 || i >= len(list) {
		return slot{}
	}
	return slot{present: true, key: list[i].key, value: list[i].value}
}

func slotsEqualKey(x, y slot) bool {
	return x.present && y.present && x.key == y.key
}

func valuesEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func maxIgnoreNil(vals ...*int) *int {
	var max *int
	for _, v := range vals {
		if v == nil {
			continue
		}
		if max == nil || *v > *max {
			max = v
		}
	}
	if max == nil {
		return nil
	}
	cp := *max
	return &cp
}

func clone(p *int) *int {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func incr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p + 1
	return &v
}

func keyIndex(w []string, k string, present bool) int {
	if !present {
		return -1
	}
	for i, e := range w {
		if e == k {
			return i
		}
	}
	return -1
}

// merge interleaves two display orderings (each already in entry form) into
// one, bumping the numeric display index as needed and falling back to
// lexical ordering of colnames to break ties when the two orderings
// disagree on relative placement. It is a direct, line-for-line port of the
// reference conflict-window algorithm: entries accumulate in two windows
// (wina/winb) while the two cursors disagree, and the windows resolve as
// soon as either cursor's current key reappears in the other window (the
// "alignment point"), at which point everything collected before the
// alignment point is flushed — the window whose first key sorts lexically
// first goes first — and the
// walk resumes immediately after it.
func merge(aIn, bIn []entry) []entry {
	a := sortPlace(aIn)
	b := sortPlace(bIn)

	ai, bi := 0, 0
	var d *int
	var wina, winb []string
	bk := map[string]*int{}
	conflict := false
	var ret []entry

	for {
		x := at(a, ai)
		y := at(b, bi)

		if !x.present && !y.present && !conflict {
			break
		}

		if !conflict {
			if slotsEqualKey(x, y) {
				if valuesEqual(x.value, y.value) {
					if x.value == nil || d == nil || *d < *x.value {
						d = clone(x.value)
					}
					ret = append(ret, entry{key: x.key, value: clone(d)})
					d = incr(d)
				} else {
					d = maxIgnoreNil(x.value, y.value, d)
					ret = append(ret, entry{key: x.key, value: clone(d)})
					d = incr(d)
				}
				ai++
				bi++
			} else {
				conflict = true
				wina = nil
				winb = nil
				bk = map[string]*int{}
				if x.present {
					wina = append(wina, x.key)
					bk[x.key] = x.value
				}
				if y.present {
					winb = append(winb, y.key)
					bk[y.key] = y.value
				}
				ai++
				bi++
			}
		} else {
			if x.present {
				wina = append(wina, x.key)
				ai++
			}
			if y.present {
				winb = append(winb, y.key)
				bi++
			}

			foundKey := ""
			foundOk := false
			var foundVal *int

			if x.present && keyIndex(winb, x.key, true) >= 0 {
				foundKey = x.key
				foundOk = true
				foundVal = x.value
			}
			if y.present && keyIndex(wina, y.key, true) >= 0 {
				foundKey = y.key
				foundOk = true
				foundVal = y.value
			}

			if !foundOk {
				if x.present {
					bk[x.key] = x.value
				}
				if y.present {
					bk[y.key] = y.value
				}
			}

			out := !x.present && !y.present && !foundOk

			if foundOk || out {
				idxA := keyIndex(wina, foundKey, foundOk)
				idxB := keyIndex(winb, foundKey, foundOk)

				var posa, posb []string
				if idxA >= 0 {
					posa = append(posa, wina[:idxA]...)
				} else {
					posa = append(posa, wina...)
				}
				if idxB >= 0 {
					posb = append(posb, winb[:idxB]...)
				} else {
					posb = append(posb, winb...)
				}

				var remA, remB []string
				if idxA >= 0 {
					remA = wina[idxA+1:]
				}
				if idxB >= 0 {
					remB = winb[idxB+1:]
				}
				wina, winb = remA, remB

				first, second := posa, posb
				if firstKey(posb) < firstKey(posa) {
					first, second = posb, posa
				}

				emit := func(key string) {
					v := bk[key]
					if v == nil || d == nil || *d < *v {
						d = clone(v)
					}
					ret = append(ret, entry{key: key, value: clone(d)})
					d = incr(d)
				}

				for _, k := range first {
					emit(k)
				}
				for _, k := range second {
					emit(k)
				}
				if !out {
					v := foundVal
					if v == nil || d == nil || *d < *v {
						d = clone(v)
					}
					ret = append(ret, entry{key: foundKey, value: clone(d)})
					d = incr(d)
				}

				ai -= len(wina)
				bi -= len(winb)
				wina = nil
				winb = nil
				conflict = false
			}
		}
	}

	return ret
}

// firstKey returns the lexical sort key for a window: its first element, or
// "" for an empty window (matching the reference behaviour that an empty
// window always sorts first).
func firstKey(w []string) string {
	if len(w) == 0 {
		return ""
	}
	return w[0]
}
