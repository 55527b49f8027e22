package dictionary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
)

// BigramLength is the number of leading runes of a token used as its index key.
const BigramLength = 2

// Bigram returns the index sharding key for a token: its first two runes, or
// the whole token when shorter.
func Bigram(token string) string {
	n := 0
	for i := range token {
		if n == BigramLength {
			return token[:i]
		}
		n++
	}
	return token
}

// Row is one raw dictionary row as delivered by the persistence layer.
type Row struct {
	ID            int64  `json:"id" yaml:"id"`
	CategoryID    int64  `json:"category_id" yaml:"category_id"`
	AttributeID   int64  `json:"attribute_id" yaml:"attribute_id"`
	EntityID      int64  `json:"entity_id" yaml:"entity_id"`
	TextValue     string `json:"text_value" yaml:"text_value"`
	BaseValue     string `json:"base_value" yaml:"base_value"`
	AttributeCode string `json:"attribute_code" yaml:"attribute_code"`
}

// Validate reports the first required field that is missing.
func (r Row) Validate() error {
	switch {
	case r.ID == 0:
		return fmt.Errorf("id: %w", internalerr.ErrMissingField)
	case r.AttributeID == 0:
		return fmt.Errorf("row %d: attribute_id: %w", r.ID, internalerr.ErrMissingField)
	case strings.TrimSpace(r.TextValue) == "":
		return fmt.Errorf("row %d: text_value: %w", r.ID, internalerr.ErrMissingField)
	case strings.TrimSpace(r.AttributeCode) == "":
		return fmt.Errorf("row %d: attribute_code: %w", r.ID, internalerr.ErrMissingField)
	}
	return nil
}

// Entity is a normalized, scored dictionary row.
type Entity struct {
	ID             int64    `json:"id"`
	CategoryID     int64    `json:"category_id"`
	AttributeID    int64    `json:"attribute_id"`
	SourceEntityID int64    `json:"source_entity_id"`
	AttributeCode  string   `json:"attribute_code"`
	BaseValue      string   `json:"base_value,omitempty"`
	OriginalText   string   `json:"original_text"`
	NormalizedText string   `json:"normalized_text"`
	Tokens         []string `json:"tokens"`
	WordCount      int      `json:"word_count"`
	MaxScore       float64  `json:"max_theoretical_score"`

	// InsufficientBigrams holds, sorted, the bigram keys of tokens whose
	// weight is below the cutoff. A match needs at least one token outside
	// this set.
	InsufficientBigrams []string `json:"insufficient_token_bigrams,omitempty"`
}

// Insufficient reports whether bigram belongs to a below-cutoff token.
func (e *Entity) Insufficient(bigram string) bool {
	i := sort.SearchStrings(e.InsufficientBigrams, bigram)
	return i < len(e.InsufficientBigrams) && e.InsufficientBigrams[i] == bigram
}

// NeedsCorroboration reports whether the entity carries below-cutoff tokens.
func (e *Entity) NeedsCorroboration() bool {
	return len(e.InsufficientBigrams) > 0
}

// Bigrams returns the bigram key of every token, in token order.
func (e *Entity) Bigrams() []string {
	out := make([]string, len(e.Tokens))
	for i, t := range e.Tokens {
		out[i] = Bigram(t)
	}
	return out
}
