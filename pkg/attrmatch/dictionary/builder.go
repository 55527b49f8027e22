package dictionary

import (
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cognicore/attrmatch/pkg/attrmatch/textclean"
	"github.com/cognicore/attrmatch/pkg/attrmatch/weighting"
)

// Defaults for Options.
const (
	DefaultCommonWordPercentile = 10.0
	DefaultPerfectMatchBonus    = 2.0
	DefaultNgramBonus           = 0.25

	progressEvery = 10000
)

// Options tunes a dictionary build.
type Options struct {
	// CommonWordPercentile (0..100) of the token weight distribution below
	// which a token counts as common.
	CommonWordPercentile float64
	PerfectMatchBonus    float64
	NgramBonus           float64
	Logger               zerolog.Logger
}

// DefaultOptions returns the default build options with a no-op logger.
func DefaultOptions() Options {
	return Options{
		CommonWordPercentile: DefaultCommonWordPercentile,
		PerfectMatchBonus:    DefaultPerfectMatchBonus,
		NgramBonus:           DefaultNgramBonus,
		Logger:               zerolog.Nop(),
	}
}

// Result holds the artifacts of one build.
type Result struct {
	Model      *weighting.Model
	Weights    weighting.Table
	Cutoff     float64
	Dictionary *Dictionary
	Ambiguity  AmbiguityMap
	Report     Report
}

// Report collects data-quality events seen during a build.
type Report struct {
	Rows          int          `json:"rows"`
	Entities      int          `json:"entities"`
	Skipped       []SkippedRow `json:"skipped,omitempty"`
	Fallbacks     []Fallback   `json:"fallbacks,omitempty"`
	UnknownTokens int          `json:"unknown_tokens"`
}

// SkippedRow is a row rejected by validation.
type SkippedRow struct {
	RowID  int64  `json:"row_id"`
	Reason string `json:"reason"`
}

// Fallback is an entity whose normalized text came out empty and was
// replaced by its original text. Usually a stoplist gap.
type Fallback struct {
	RowID int64  `json:"row_id"`
	Text  string `json:"text"`
}

// Build converts raw rows into scored, ordered dictionary artifacts. Bad rows
// are skipped and reported; an empty input yields an empty dictionary.
func Build(rows []Row, tok *textclean.Tokenizer, opts Options) (*Result, error) {
	if tok == nil {
		return nil, errors.New("dictionary build requires a tokenizer")
	}
	logger := opts.Logger
	report := Report{Rows: len(rows)}

	logger.Info().Int("rows", len(rows)).Msg("converting dictionary rows")
	entities := make([]*Entity, 0, len(rows))
	for i, row := range rows {
		if i%progressEvery == 0 {
			logger.Info().Int("converted", i).Int64("row_id", row.ID).Msg("dictionary conversion progress")
		}
		if err := row.Validate(); err != nil {
			logger.Warn().Err(err).Int64("row_id", row.ID).Msg("skipping dictionary row")
			report.Skipped = append(report.Skipped, SkippedRow{RowID: row.ID, Reason: err.Error()})
			continue
		}
		e, fellBack := convert(row, tok)
		if fellBack {
			logger.Warn().Int64("row_id", row.ID).Str("text", row.TextValue).
				Msg("normalized text empty, using original text")
			report.Fallbacks = append(report.Fallbacks, Fallback{RowID: row.ID, Text: row.TextValue})
		}
		entities = append(entities, e)
	}

	docs := make([][]string, len(entities))
	for i, e := range entities {
		docs[i] = e.Tokens
	}
	model := weighting.Fit(docs)
	weights := model.Table()
	cutoff := model.Cutoff(opts.CommonWordPercentile)

	for _, e := range entities {
		report.UnknownTokens += score(e, weights, cutoff, opts)
	}

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].MaxScore > entities[j].MaxScore
	})

	dict := New(entities)
	report.Entities = dict.Len()

	logger.Info().
		Int("entities", dict.Len()).
		Int("tokens", len(weights)).
		Float64("cutoff", cutoff).
		Int("skipped", len(report.Skipped)).
		Int("fallbacks", len(report.Fallbacks)).
		Msg("dictionary built")

	return &Result{
		Model:      model,
		Weights:    weights,
		Cutoff:     cutoff,
		Dictionary: dict,
		Ambiguity:  BuildAmbiguity(dict),
		Report:     report,
	}, nil
}

func convert(row Row, tok *textclean.Tokenizer) (*Entity, bool) {
	tokens := tok.Tokenize(row.TextValue)
	normalized := strings.Join(tokens, " ")
	fellBack := len(tokens) == 0
	if fellBack {
		normalized = row.TextValue
		tokens = strings.Fields(strings.ToLower(row.TextValue))
	}
	return &Entity{
		ID:             row.ID,
		CategoryID:     row.CategoryID,
		AttributeID:    row.AttributeID,
		SourceEntityID: row.EntityID,
		AttributeCode:  row.AttributeCode,
		BaseValue:      row.BaseValue,
		OriginalText:   row.TextValue,
		NormalizedText: normalized,
		Tokens:         tokens,
		WordCount:      len(tokens),
	}, fellBack
}

// score sets MaxScore and InsufficientBigrams and returns the number of
// tokens missing from the weight table.
func score(e *Entity, weights weighting.Table, cutoff float64, opts Options) int {
	var (
		base    float64
		unknown int
		below   = make(map[string]struct{})
		nBelow  int
	)
	terms := weighting.SublinearTF(e.Tokens)
	for _, tf := range terms {
		w, ok := weights.Weight(tf.Token)
		if !ok {
			unknown++
			opts.Logger.Warn().Str("token", tf.Token).Int64("entity_id", e.ID).
				Msg("token missing from weight table")
			continue
		}
		base += w * tf.TF
		if w < cutoff {
			below[Bigram(tf.Token)] = struct{}{}
			nBelow++
		}
	}

	// An entity made only of common tokens cannot ask for corroboration.
	if nBelow == len(terms) {
		below = nil
	}
	e.InsufficientBigrams = nil
	for b := range below {
		e.InsufficientBigrams = append(e.InsufficientBigrams, b)
	}
	sort.Strings(e.InsufficientBigrams)

	e.MaxScore = MaxScore(base, e.WordCount, opts.PerfectMatchBonus, opts.NgramBonus)
	return unknown
}

// MaxScore is the theoretical best score of an entity whose token weights
// sum to base: the perfect-match bonus, then the n-gram bonus for
// multi-word entities.
func MaxScore(base float64, wordCount int, perfectBonus, ngramBonus float64) float64 {
	s := base * perfectBonus
	if wordCount > 1 {
		s *= 1 + float64(wordCount)*ngramBonus
	}
	return s
}
