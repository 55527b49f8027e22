// Package weighting computes rarity weights for dictionary tokens.
//
// The weight of a token is an inverse-document-frequency statistic over the
// dictionary entities:
//
//	w(t) = ln((N + 1) / df(t))
//
// where N is the number of entities and df(t) the number of entities whose
// token list contains t. The weight is strictly positive and finite for any
// token seen at least once, and falls towards zero (ln(1 + 1/N)) for a token
// present in every entity. Repetitions inside one entity are damped with a
// sublinear term frequency 1 + ln(count) when entity scores are summed.
package weighting

import (
	"math"
	"sort"
)

// Table maps token -> rarity weight.
type Table map[string]float64

// Weight returns the weight for a token and whether it was seen during fit.
// Callers treat a miss as contributing zero weight.
func (t Table) Weight(token string) (float64, bool) {
	w, ok := t[token]
	return w, ok
}

// Values returns all weights in ascending order.
func (t Table) Values() []float64 {
	out := make([]float64, 0, len(t))
	for _, w := range t {
		out = append(out, w)
	}
	sort.Float64s(out)
	return out
}

// Model is a fitted term weighting model.
type Model struct {
	counter *Counter
	weights Table
}

// Fit builds a model from the token lists of every dictionary entity.
func Fit(docs [][]string) *Model {
	counter := NewCounter()
	for _, tokens := range docs {
		counter.AddDocument(tokens)
	}

	weights := make(Table, counter.UniqueTokens())
	for token, df := range counter.Nx {
		weights[token] = Weight(counter.N, df)
	}
	return &Model{counter: counter, weights: weights}
}

// Table returns the fitted weights.
func (m *Model) Table() Table {
	return m.weights
}

// Docs returns the number of documents the model was fitted on.
func (m *Model) Docs() int64 {
	return m.counter.TotalDocs()
}

// DocFreq returns the document frequency of a token.
func (m *Model) DocFreq(token string) int64 {
	return m.counter.GetTokenCount(token)
}

// Tokens returns every fitted token in lexical order.
func (m *Model) Tokens() []string {
	out := make([]string, 0, len(m.weights))
	for t := range m.weights {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Cutoff returns the weight at the given percentile (0..100) of the weight
// distribution over all distinct tokens.
func (m *Model) Cutoff(percentile float64) float64 {
	return Percentile(m.weights.Values(), percentile)
}

// Weight is the rarity weight of a token with document frequency df in a
// corpus of n documents. df must be in [1, n].
func Weight(n, df int64) float64 {
	if df <= 0 {
		return 0
	}
	return math.Log(float64(n+1) / float64(df))
}

// TermFreq is a distinct token with its damped in-document frequency.
type TermFreq struct {
	Token string
	TF    float64
}

// SublinearTF collapses repeated tokens into distinct tokens in first-seen
// order with TF = 1 + ln(count).
func SublinearTF(tokens []string) []TermFreq {
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	out := make([]TermFreq, len(order))
	for i, t := range order {
		out[i] = TermFreq{Token: t, TF: 1 + math.Log(float64(counts[t]))}
	}
	return out
}

// Percentile returns the p-th percentile (0..100) of ascending-sorted values
// using linear interpolation between closest ranks. Empty input yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
