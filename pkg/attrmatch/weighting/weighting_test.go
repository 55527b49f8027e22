package weighting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterBasic(t *testing.T) {
	counter := NewCounter()
	counter.AddDocument([]string{"napa", "valley", "napa"})
	counter.AddDocument([]string{"napa"})

	assert.Equal(t, int64(2), counter.TotalDocs())
	assert.Equal(t, int64(2), counter.GetTokenCount("napa"))
	assert.Equal(t, int64(1), counter.GetTokenCount("valley"))
	assert.Equal(t, 2, counter.UniqueTokens())
}

func TestFitWeightsMonotonic(t *testing.T) {
	model := Fit([][]string{
		{"chateau", "margaux"},
		{"chateau", "latour"},
		{"chateau", "napa"},
		{"napa", "valley"},
	})
	table := model.Table()

	chateau, ok := table.Weight("chateau")
	require.True(t, ok)
	napa, _ := table.Weight("napa")
	margaux, _ := table.Weight("margaux")

	assert.Greater(t, margaux, napa)
	assert.Greater(t, napa, chateau)
	assert.Greater(t, chateau, 0.0)
	assert.Equal(t, int64(4), model.Docs())
	assert.Equal(t, int64(3), model.DocFreq("chateau"))

	_, ok = table.Weight("unknown")
	assert.False(t, ok)
}

func TestWeightEverywhereTokenIsSmallButPositive(t *testing.T) {
	docs := make([][]string, 1000)
	for i := range docs {
		docs[i] = []string{"wine"}
	}
	w, _ := Fit(docs).Table().Weight("wine")

	assert.Greater(t, w, 0.0)
	assert.Less(t, w, 0.01)
	assert.False(t, math.IsInf(w, 0))
}

func TestSublinearTF(t *testing.T) {
	got := SublinearTF([]string{"la", "la", "land", "la"})
	require.Len(t, got, 2)
	assert.Equal(t, "la", got[0].Token)
	assert.InDelta(t, 1+math.Log(3), got[0].TF, 1e-12)
	assert.Equal(t, "land", got[1].Token)
	assert.InDelta(t, 1.0, got[1].TF, 1e-12)
}

func TestPercentile(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, 1.0, Percentile(vals, 0))
	assert.Equal(t, 5.0, Percentile(vals, 100))
	assert.Equal(t, 3.0, Percentile(vals, 50))
	assert.InDelta(t, 1.4, Percentile(vals, 10), 1e-12)
	assert.InDelta(t, 4.6, Percentile(vals, 90), 1e-12)
}

func TestModelCutoffAndTokens(t *testing.T) {
	model := Fit([][]string{{"a", "b"}, {"a"}, {"a", "c"}})

	assert.Equal(t, []string{"a", "b", "c"}, model.Tokens())
	cutoff := model.Cutoff(0)
	wa, _ := model.Table().Weight("a")
	assert.Equal(t, wa, cutoff)
}
