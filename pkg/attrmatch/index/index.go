// Package index builds the bigram inverted index consumed by dictionary
// lookup. Posting lists are append-only: an id is appended once per token
// carrying the bigram, duplicates included, and readers dedupe at match time.
package index

import (
	"sort"

	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
)

// Index maps bigram -> entity ids.
type Index map[string][]int64

// New returns an empty index.
func New() Index {
	return make(Index)
}

// Extend appends the postings of entities to idx and returns it. A nil idx
// starts a new index, so Extend(nil, all) is a full build and
// Extend(prior, added) an incremental one.
func Extend(idx Index, entities []*dictionary.Entity) Index {
	if idx == nil {
		idx = New()
	}
	for _, e := range entities {
		for _, key := range e.Bigrams() {
			idx[key] = append(idx[key], e.ID)
		}
	}
	return idx
}

// Merge appends other's postings onto idx, in other's bigram order.
// Incremental builds merge the postings of changed entities into a clone of
// the prior index.
func Merge(idx, other Index) Index {
	if idx == nil {
		idx = New()
	}
	for _, key := range other.Keys() {
		idx[key] = append(idx[key], other[key]...)
	}
	return idx
}

// Clone returns a deep copy so a shared prior index can seed a rebuild
// without being mutated.
func (idx Index) Clone() Index {
	out := make(Index, len(idx))
	for k, ids := range idx {
		out[k] = append([]int64(nil), ids...)
	}
	return out
}

// Postings returns the ids indexed under bigram, duplicates included.
func (idx Index) Postings(bigram string) []int64 {
	return idx[bigram]
}

// Keys returns all bigrams in lexical order.
func (idx Index) Keys() []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the total number of postings.
func (idx Index) Size() int {
	n := 0
	for _, ids := range idx {
		n += len(ids)
	}
	return n
}

// IDs returns the set of indexed entity ids. Incremental builds use it to
// select entities missing from a prior index.
func (idx Index) IDs() map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, ids := range idx {
		for _, id := range ids {
			out[id] = struct{}{}
		}
	}
	return out
}
