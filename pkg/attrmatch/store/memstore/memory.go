package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
)

// Store is an in-memory implementation of store.Store for tests and
// examples. It is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	attributes   map[int64]attr.Definition
	rows         map[int64]dictionary.Row
	products     map[int64]store.Product
	reviews      map[int64]store.Review
	descriptions map[descKey]string
	values       map[valueKey]attr.Record
	upserts      int
}

type descKey struct {
	sourceID, sequenceID, productID int64
}

type valueKey struct {
	sequenceID, sourceID, productID, attributeID int64
	value                                        string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		attributes:   make(map[int64]attr.Definition),
		rows:         make(map[int64]dictionary.Row),
		products:     make(map[int64]store.Product),
		reviews:      make(map[int64]store.Review),
		descriptions: make(map[descKey]string),
		values:       make(map[valueKey]attr.Record),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertAttribute inserts or replaces a domain attribute by id.
func (s *Store) UpsertAttribute(ctx context.Context, d attr.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.RegexPatterns = append([]string(nil), d.RegexPatterns...)
	s.attributes[d.ID] = d
	return nil
}

// UpsertDictionaryRow inserts or replaces a dictionary row by id.
func (s *Store) UpsertDictionaryRow(ctx context.Context, r dictionary.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[r.ID] = r
	return nil
}

// UpsertProduct inserts or replaces a product by id.
func (s *Store) UpsertProduct(ctx context.Context, p store.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

// UpsertReview inserts or replaces a review by id.
func (s *Store) UpsertReview(ctx context.Context, r store.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Score != nil {
		score := *r.Score
		r.Score = &score
	}
	s.reviews[r.ID] = r
	return nil
}

// UpsertDescription sets the description of a product for a sequence.
func (s *Store) UpsertDescription(ctx context.Context, d store.Description) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptions[descKey{d.SourceID, d.SequenceID, d.MasterProductID}] = d.Content
	return nil
}

// DictionaryRows returns all rows ordered by id.
func (s *Store) DictionaryRows(ctx context.Context) ([]dictionary.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dictionary.Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Attributes returns all attributes ordered by id.
func (s *Store) Attributes(ctx context.Context) ([]attr.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]attr.Definition, 0, len(s.attributes))
	for _, d := range s.attributes {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Products returns the products of a source ordered by id.
func (s *Store) Products(ctx context.Context, sourceID int64) ([]store.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Product
	for _, p := range s.products {
		if p.SourceID == sourceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reviews returns the reviews of a source and sequence ordered by id.
func (s *Store) Reviews(ctx context.Context, sourceID, sequenceID int64) ([]store.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Review
	for _, r := range s.reviews {
		if r.SourceID == sourceID && r.SequenceID == sequenceID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DescriptionContents returns product id -> description for a sequence.
func (s *Store) DescriptionContents(ctx context.Context, sourceID, sequenceID int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]string)
	for k, content := range s.descriptions {
		if k.sourceID == sourceID && k.sequenceID == sequenceID {
			out[k.productID] = content
		}
	}
	return out, nil
}

// BulkUpsert stores records, ignoring ones already present. Every record is
// validated before any is written.
func (s *Store) BulkUpsert(ctx context.Context, records []attr.Record) error {
	keys := make([]valueKey, len(records))
	for i, r := range records {
		v, err := store.ValueKey(r)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		keys[i] = valueKey{r.SequenceID, r.SourceID, r.MasterProductID, r.AttributeID, v}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, k := range keys {
		if _, exists := s.values[k]; exists {
			continue
		}
		s.values[k] = records[i]
	}
	s.upserts++
	return nil
}

// BulkUpserts returns how many BulkUpsert calls succeeded.
func (s *Store) BulkUpserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

// AttributeValues implements store.Store.
func (s *Store) AttributeValues(ctx context.Context, sourceID, sequenceID int64) ([]attr.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type keyed struct {
		key valueKey
		rec attr.Record
	}
	var found []keyed
	for k, r := range s.values {
		if k.sourceID == sourceID && k.sequenceID == sequenceID {
			found = append(found, keyed{k, r})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		a, b := found[i].key, found[j].key
		if a.productID != b.productID {
			return a.productID < b.productID
		}
		if a.attributeID != b.attributeID {
			return a.attributeID < b.attributeID
		}
		return a.value < b.value
	})
	out := make([]attr.Record, len(found))
	for i, f := range found {
		out[i] = f.rec
	}
	return out, nil
}

var _ store.Store = (*Store)(nil)
