// Package lookup resolves sentences against a built dictionary.
//
// Candidates come from the bigram index. Each candidate entity is scored by
// the rarity weights of its tokens found in the sentence: exact hits count
// in full, fuzzy hits (the sentence token extends the entity token by a short
// suffix, e.g. "cabernets") count at FuzzyWeight. A complete exact match
// earns the perfect-match bonus and a complete multi-word match the n-gram
// bonus, so a perfect hit scores exactly the entity's MaxScore. Entities
// carrying below-cutoff tokens must also match one of their distinguishing
// tokens. Entities are visited in dictionary order and an accepted entity
// claims the sentence tokens it matched; later entities whose matched tokens
// are all claimed are dropped.
package lookup

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/index"
	"github.com/cognicore/attrmatch/pkg/attrmatch/textclean"
	"github.com/cognicore/attrmatch/pkg/attrmatch/weighting"
)

// Defaults for Options.
const (
	DefaultMinScoreRatio = 0.35
	DefaultFuzzySuffix   = 2
	DefaultFuzzyWeight   = 0.8
)

// AcceptanceRule decides whether a scored entity is a match.
type AcceptanceRule interface {
	Accept(score float64, e *dictionary.Entity) bool
}

// RatioRule accepts scores of at least MinRatio times the entity's MaxScore.
type RatioRule struct {
	MinRatio float64
}

const epsilon = 1e-9

// Accept implements AcceptanceRule.
func (r RatioRule) Accept(score float64, e *dictionary.Entity) bool {
	if e.MaxScore <= 0 || score <= 0 {
		return false
	}
	return score+epsilon >= r.MinRatio*e.MaxScore
}

// Options tunes the matcher. PerfectMatchBonus and NgramBonus must equal the
// values the dictionary was built with.
type Options struct {
	Rule              AcceptanceRule
	FuzzySuffix       int
	FuzzyWeight       float64
	PerfectMatchBonus float64
	NgramBonus        float64
	Logger            zerolog.Logger
}

// DefaultOptions returns options matching dictionary.DefaultOptions.
func DefaultOptions() Options {
	return Options{
		Rule:              RatioRule{MinRatio: DefaultMinScoreRatio},
		FuzzySuffix:       DefaultFuzzySuffix,
		FuzzyWeight:       DefaultFuzzyWeight,
		PerfectMatchBonus: dictionary.DefaultPerfectMatchBonus,
		NgramBonus:        dictionary.DefaultNgramBonus,
		Logger:            zerolog.Nop(),
	}
}

// Artifacts are the read-only build outputs a matcher consumes.
type Artifacts struct {
	Dictionary *dictionary.Dictionary
	Ambiguity  dictionary.AmbiguityMap
	Index      index.Index
	Weights    weighting.Table
}

// Matcher is safe for concurrent use; it never mutates its artifacts.
type Matcher struct {
	art  Artifacts
	tok  *textclean.Tokenizer
	opts Options
}

// NewMatcher creates a matcher. tok must normalize text the same way the
// dictionary build did.
func NewMatcher(art Artifacts, tok *textclean.Tokenizer, opts Options) *Matcher {
	if opts.Rule == nil {
		opts.Rule = RatioRule{MinRatio: DefaultMinScoreRatio}
	}
	if tok == nil {
		tok = textclean.NewTokenizer(nil)
	}
	return &Matcher{art: art, tok: tok, opts: opts}
}

// Match is an accepted entity.
type Match struct {
	Entity    *dictionary.Entity
	Score     float64
	Exact     int
	Fuzzy     int
	Positions []int // sentence token positions
}

// Match scores every candidate entity for sentence and returns the accepted
// ones in dictionary order.
func (m *Matcher) Match(sentence string) []Match {
	tokens := m.tok.Tokenize(sentence)
	if len(tokens) == 0 {
		return nil
	}
	buckets := make(map[string][]int)
	for i, t := range tokens {
		b := dictionary.Bigram(t)
		buckets[b] = append(buckets[b], i)
	}

	claimed := make(map[int]bool)
	var out []Match
	for _, e := range m.candidates(buckets) {
		match, ok := m.score(e, tokens, buckets)
		if !ok || !m.opts.Rule.Accept(match.Score, e) {
			continue
		}
		fresh := false
		for _, p := range match.Positions {
			if !claimed[p] {
				fresh = true
				break
			}
		}
		if !fresh {
			continue
		}
		for _, p := range match.Positions {
			claimed[p] = true
		}
		out = append(out, match)
	}
	return out
}

// Lookup returns attribute candidates for a normalized sentence. Accepted
// entities with ambiguous text expand to every entity listed for the text.
func (m *Matcher) Lookup(ctx context.Context, sentence string) ([]attr.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emitted := make(map[int64]bool)
	var out []attr.Candidate
	for _, match := range m.Match(sentence) {
		for _, id := range m.targets(match.Entity) {
			if emitted[id] {
				continue
			}
			emitted[id] = true
			e, ok := m.art.Dictionary.Get(id)
			if !ok {
				continue
			}
			out = append(out, CandidateFor(e))
		}
	}
	return out, nil
}

func (m *Matcher) targets(e *dictionary.Entity) []int64 {
	ids := m.art.Ambiguity.IDs(e.NormalizedText)
	for _, id := range ids {
		if id == e.ID {
			return ids
		}
	}
	return []int64{e.ID}
}

// candidates returns the distinct entities posted under the sentence's
// bigrams, in dictionary order.
func (m *Matcher) candidates(buckets map[string][]int) []*dictionary.Entity {
	seen := make(map[int64]struct{})
	var out []*dictionary.Entity
	for b := range buckets {
		for _, id := range m.art.Index.Postings(b) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			e, ok := m.art.Dictionary.Get(id)
			if !ok {
				m.opts.Logger.Warn().Int64("entity_id", id).Str("bigram", b).Msg("index posting without dictionary entity")
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.art.Dictionary.Rank(out[i].ID) < m.art.Dictionary.Rank(out[j].ID)
	})
	return out
}

func (m *Matcher) score(e *dictionary.Entity, tokens []string, buckets map[string][]int) (Match, bool) {
	match := Match{Entity: e}
	used := make(map[int]bool)
	corroborated := !e.NeedsCorroboration()

	terms := weighting.SublinearTF(e.Tokens)
	for _, tf := range terms {
		w, ok := m.art.Weights.Weight(tf.Token)
		if !ok {
			continue
		}
		bigram := dictionary.Bigram(tf.Token)
		pos, exact := m.find(tf.Token, tokens, buckets[bigram], used)
		if pos < 0 {
			continue
		}
		used[pos] = true
		match.Positions = append(match.Positions, pos)
		if exact {
			match.Score += w * tf.TF
			match.Exact++
		} else {
			match.Score += w * tf.TF * m.opts.FuzzyWeight
			match.Fuzzy++
		}
		if !e.Insufficient(bigram) {
			corroborated = true
		}
	}
	if len(match.Positions) == 0 || !corroborated {
		return Match{}, false
	}

	if match.Exact == len(terms) {
		match.Score *= m.opts.PerfectMatchBonus
	}
	if match.Exact+match.Fuzzy == len(terms) && e.WordCount > 1 {
		match.Score *= 1 + float64(e.WordCount)*m.opts.NgramBonus
	}
	sort.Ints(match.Positions)
	return match, true
}

// find returns the first unused position holding token, else the first
// unused position holding a fuzzy extension of it, else -1.
func (m *Matcher) find(token string, tokens []string, positions []int, used map[int]bool) (int, bool) {
	fuzzy := -1
	want := utf8.RuneCountInString(token)
	for _, p := range positions {
		if used[p] {
			continue
		}
		got := tokens[p]
		if got == token {
			return p, true
		}
		if fuzzy < 0 && m.opts.FuzzySuffix > 0 && strings.HasPrefix(got, token) {
			if extra := utf8.RuneCountInString(got) - want; extra > 0 && extra <= m.opts.FuzzySuffix {
				fuzzy = p
			}
		}
	}
	return fuzzy, false
}

// CandidateFor converts an entity into an attribute candidate. The entity's
// base value selects the kind: "true"/"false" are booleans, numbers are
// floats, anything else (or nothing) refers to the source entity node.
func CandidateFor(e *dictionary.Entity) attr.Candidate {
	return attr.Candidate{Code: e.AttributeCode, Value: valueOf(e), EntityID: e.ID}
}

func valueOf(e *dictionary.Entity) attr.Value {
	base := strings.TrimSpace(e.BaseValue)
	switch strings.ToLower(base) {
	case "":
		return attr.NodeValue(e.SourceEntityID)
	case "true":
		return attr.BoolValue(true)
	case "false":
		return attr.BoolValue(false)
	}
	if f, err := strconv.ParseFloat(base, 64); err == nil {
		return attr.FloatValue(f)
	}
	return attr.NodeValue(e.SourceEntityID)
}
