package attrmatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/attrmatch/pkg/attrmatch/artifact"
	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/extract"
	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/lookup"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store/memstore"
)

func score(v float64) *float64 { return &v }

func seed(t *testing.T, s *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	defs := []attr.Definition{
		{ID: 1, Code: "rating", Datatype: attr.Float, ShouldExtractValues: true},
		{ID: 2, Code: "organic", Datatype: attr.Boolean, ShouldExtractValues: true, RegexPatterns: []string{`\borganic\b`}},
		{ID: 4, Code: "region", Datatype: attr.NodeID, ShouldExtractValues: true, ShouldExtractFromName: true},
		{ID: 5, Code: "varietal", Datatype: attr.NodeID, ShouldExtractValues: true, ShouldExtractFromName: true},
	}
	for _, d := range defs {
		require.NoError(t, s.UpsertAttribute(ctx, d))
	}
	rows := []dictionary.Row{
		{ID: 10, AttributeID: 4, EntityID: 100, TextValue: "Napa Valley", AttributeCode: "region"},
		{ID: 11, AttributeID: 4, EntityID: 101, TextValue: "Sonoma Coast", AttributeCode: "region"},
		{ID: 12, AttributeID: 5, EntityID: 103, TextValue: "Cabernet Sauvignon", AttributeCode: "varietal"},
	}
	for _, r := range rows {
		require.NoError(t, s.UpsertDictionaryRow(ctx, r))
	}
	require.NoError(t, s.UpsertProduct(ctx, store.Product{ID: 1, SourceID: 7, Name: "Reserve Cabernet Sauvignon"}))
	require.NoError(t, s.UpsertReview(ctx, store.Review{
		ID: 1, SourceID: 7, SequenceID: 3, MasterProductID: 1, Score: score(90),
		Content: "Grown in the Napa Valley hills.",
	}))
	require.NoError(t, s.UpsertDescription(ctx, store.Description{
		SourceID: 7, SequenceID: 3, MasterProductID: 1,
		Content: "<p>Certified organic fruit from Sonoma Coast.</p>",
	}))
}

func newEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	seed(t, s)
	e := New(Options{
		Store:      s,
		Dictionary: dictionary.DefaultOptions(),
		Lookup:     lookup.DefaultOptions(),
		Logger:     zerolog.Nop(),
	})
	return e, s
}

func storedValues(t *testing.T, s *memstore.Store, src, seq int64) []string {
	t.Helper()
	recs, err := s.AttributeValues(context.Background(), src, seq)
	require.NoError(t, err)
	out := make([]string, len(recs))
	for i, r := range recs {
		v, err := r.Value()
		require.NoError(t, err)
		out[i] = fmt.Sprintf("%d=%s", r.AttributeID, v)
	}
	return out
}

func TestBuildAndExtract(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)

	res, err := e.BuildDictionary(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.Bundle.RunID)
	assert.False(t, res.Incremental)
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, 3, res.Bundle.Dictionary.Len())

	sum, err := e.Extract(ctx, ExtractRequest{SourceID: 7, SequenceID: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Products)

	assert.Equal(t, []string{"1=90", "2=true", "4=100", "4=101", "5=103"}, storedValues(t, s, 7, 3))
}

func TestLookupUsesLatestBundle(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.Lookup(ctx, "Napa Valley")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)

	_, err = e.BuildDictionary(ctx)
	require.NoError(t, err)

	cands, err := e.Lookup(ctx, "Lovely fruit from the Napa Valley!")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, attr.Candidate{Code: "region", Value: attr.NodeValue(100), EntityID: 10}, cands[0])

	matches, err := e.Explain(ctx, "Lovely fruit from the Napa Valley!")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Exact)
}

func TestIncrementalIndex(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seed(t, s)
	arts := artifact.NewMemoryStore()
	e := New(Options{
		Store:            s,
		Artifacts:        arts,
		Dictionary:       dictionary.DefaultOptions(),
		IncrementalIndex: true,
		Logger:           zerolog.Nop(),
	})

	first, err := e.BuildDictionary(ctx)
	require.NoError(t, err)
	assert.False(t, first.Incremental)
	size := first.Bundle.Index.Size()

	require.NoError(t, s.UpsertDictionaryRow(ctx, dictionary.Row{
		ID: 13, AttributeID: 5, EntityID: 104, TextValue: "Pinot Noir", AttributeCode: "varietal",
	}))
	second, err := e.BuildDictionary(ctx)
	require.NoError(t, err)
	assert.True(t, second.Incremental)
	assert.Equal(t, 1, second.Added)
	assert.Equal(t, size+2, second.Bundle.Index.Size())
	assert.Equal(t, size, first.Bundle.Index.Size(), "prior index untouched")

	latest, err := arts.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Bundle.RunID, latest.RunID)

	cands, err := e.Lookup(ctx, "a silky pinot noir")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, attr.NodeValue(104), cands[0].Value)
}

func TestIncrementalIndexReindexesChangedText(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seed(t, s)
	e := New(Options{
		Store:            s,
		Dictionary:       dictionary.DefaultOptions(),
		IncrementalIndex: true,
		Logger:           zerolog.Nop(),
	})

	_, err := e.BuildDictionary(ctx)
	require.NoError(t, err)

	unchanged, err := e.BuildDictionary(ctx)
	require.NoError(t, err)
	assert.True(t, unchanged.Incremental)
	assert.Zero(t, unchanged.Added)

	require.NoError(t, s.UpsertDictionaryRow(ctx, dictionary.Row{
		ID: 12, AttributeID: 5, EntityID: 103, TextValue: "Pinot Noir", AttributeCode: "varietal",
	}))
	changed, err := e.BuildDictionary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed.Added)

	cands, err := e.Lookup(ctx, "a silky pinot noir")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, attr.NodeValue(103), cands[0].Value)

	cands, err = e.Lookup(ctx, "cabernet sauvignon")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestBuildSuggestsStopwords(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	for i, text := range []string{"Napa Valley", "Sonoma Valley", "Russian River Valley", "Cabernet Sauvignon"} {
		require.NoError(t, s.UpsertDictionaryRow(ctx, dictionary.Row{
			ID: int64(i + 1), AttributeID: 4, EntityID: int64(100 + i), TextValue: text, AttributeCode: "region",
		}))
	}
	e := New(Options{Store: s, Dictionary: dictionary.DefaultOptions(), Logger: zerolog.Nop()})

	res, err := e.BuildDictionary(ctx)
	require.NoError(t, err)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "valley", res.Suggestions[0].Token)
	assert.InDelta(t, 0.75, res.Suggestions[0].Score, 1e-9)
}

type remoteLookup struct{ calls int }

func (r *remoteLookup) Lookup(_ context.Context, _ string) ([]attr.Candidate, error) {
	r.calls++
	return nil, nil
}

func TestExtractWithRemoteLookup(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seed(t, s)
	remote := &remoteLookup{}
	e := New(Options{Store: s, Remote: remote, Logger: zerolog.Nop()})

	sum, err := e.Extract(ctx, ExtractRequest{SourceID: 7, SequenceID: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Products)
	assert.Positive(t, remote.calls)
	assert.Equal(t, []string{"1=90", "2=true"}, storedValues(t, s, 7, 3))
}

func TestExtractRequiresBundle(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Extract(context.Background(), ExtractRequest{SourceID: 7, SequenceID: 3})
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

var _ extract.Lookuper = (*remoteLookup)(nil)
