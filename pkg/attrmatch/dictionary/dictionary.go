package dictionary

import "encoding/json"

// Dictionary is the ordered entity collection: entities sorted by
// MaxScore descending, ties in input order. Read-only once built.
type Dictionary struct {
	order []*Entity
	byID  map[int64]int
}

// New wraps already-ordered entities. Later duplicates of an id are ignored.
func New(ordered []*Entity) *Dictionary {
	d := &Dictionary{
		order: make([]*Entity, 0, len(ordered)),
		byID:  make(map[int64]int, len(ordered)),
	}
	for _, e := range ordered {
		if _, dup := d.byID[e.ID]; dup {
			continue
		}
		d.byID[e.ID] = len(d.order)
		d.order = append(d.order, e)
	}
	return d
}

// Get returns the entity with the given id.
func (d *Dictionary) Get(id int64) (*Entity, bool) {
	i, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return d.order[i], true
}

// Rank returns the position of id in the ordering, or -1.
func (d *Dictionary) Rank(id int64) int {
	if i, ok := d.byID[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of entities.
func (d *Dictionary) Len() int {
	return len(d.order)
}

// Entities returns the entities in order. The slice is a copy; the entities
// are shared and must not be mutated.
func (d *Dictionary) Entities() []*Entity {
	out := make([]*Entity, len(d.order))
	copy(out, d.order)
	return out
}

// MarshalJSON encodes the dictionary as an ordered array of entities.
func (d *Dictionary) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.order)
}

// UnmarshalJSON restores a dictionary from an ordered array of entities.
func (d *Dictionary) UnmarshalJSON(data []byte) error {
	var entities []*Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return err
	}
	*d = *New(entities)
	return nil
}

// AmbiguityMap maps normalized text to entity ids. A single-element slice is
// an unambiguous text; longer slices list entities of differing attribute
// codes in dictionary order.
type AmbiguityMap map[string][]int64

// IDs returns the ids registered for a normalized text.
func (m AmbiguityMap) IDs(text string) []int64 {
	return m[text]
}

// Ambiguous reports whether text resolves to more than one entity.
func (m AmbiguityMap) Ambiguous(text string) bool {
	return len(m[text]) > 1
}

// BuildAmbiguity walks the dictionary in order. The first entity for a text
// registers it; a later entity with the same text is appended only when its
// attribute code differs from the first registered entity's code.
func BuildAmbiguity(d *Dictionary) AmbiguityMap {
	m := make(AmbiguityMap)
	for _, e := range d.order {
		ids, seen := m[e.NormalizedText]
		if !seen {
			m[e.NormalizedText] = []int64{e.ID}
			continue
		}
		first, _ := d.Get(ids[0])
		if first.AttributeCode == e.AttributeCode {
			continue
		}
		m[e.NormalizedText] = append(ids, e.ID)
	}
	return m
}
