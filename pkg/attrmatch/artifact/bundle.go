// Package artifact persists the read-only outputs of a dictionary build so
// extraction runs and lookup services in other processes load the same
// weights, dictionary, ambiguity map and index.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/index"
	"github.com/cognicore/attrmatch/pkg/attrmatch/lookup"
	"github.com/cognicore/attrmatch/pkg/attrmatch/weighting"
)

// Bundle is one published dictionary build.
type Bundle struct {
	RunID   string    `json:"run_id"`
	BuiltAt time.Time `json:"built_at"`

	// Scoring constants the build used; lookups must score the same way.
	CommonWordPercentile float64 `json:"common_word_percentile"`
	PerfectMatchBonus    float64 `json:"perfect_match_bonus"`
	NgramBonus           float64 `json:"ngram_bonus"`

	Weights    weighting.Table         `json:"weights"`
	Cutoff     float64                 `json:"cutoff"`
	Dictionary *dictionary.Dictionary  `json:"dictionary"`
	Ambiguity  dictionary.AmbiguityMap `json:"ambiguity"`
	Index      index.Index             `json:"index"`
	Report     dictionary.Report       `json:"report"`
}

// Artifacts returns the matcher view of the bundle.
func (b *Bundle) Artifacts() lookup.Artifacts {
	return lookup.Artifacts{
		Dictionary: b.Dictionary,
		Ambiguity:  b.Ambiguity,
		Index:      b.Index,
		Weights:    b.Weights,
	}
}

// Encode serializes the bundle.
func (b *Bundle) Encode() ([]byte, error) {
	if b.RunID == "" {
		return nil, fmt.Errorf("bundle has no run id")
	}
	return json.Marshal(b)
}

// Decode restores a bundle produced by Encode.
func Decode(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Dictionary == nil {
		b.Dictionary = dictionary.New(nil)
	}
	if b.Index == nil {
		b.Index = index.New()
	}
	return &b, nil
}

// Store persists bundles. Save records the bundle under its run id and
// makes it the latest.
type Store interface {
	Save(ctx context.Context, b *Bundle) error
	Latest(ctx context.Context) (*Bundle, error)
	Get(ctx context.Context, runID string) (*Bundle, error)
	Close() error
}
