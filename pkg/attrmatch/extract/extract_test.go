package extract

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store/memstore"
	"github.com/cognicore/attrmatch/pkg/attrmatch/textclean"
)

type hit struct {
	substr string
	cand   attr.Candidate
}

type fakeLookup struct {
	mu   sync.Mutex
	seen []string
	hits []hit
	err  error
}

func (f *fakeLookup) Lookup(_ context.Context, sentence string) ([]attr.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, sentence)
	if f.err != nil {
		return nil, f.err
	}
	var out []attr.Candidate
	for _, h := range f.hits {
		if strings.Contains(sentence, h.substr) {
			out = append(out, h.cand)
		}
	}
	return out, nil
}

func (f *fakeLookup) sentences() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func testAttributes() []attr.Definition {
	return []attr.Definition{
		{ID: 1, Code: "rating", Datatype: attr.Float},
		{ID: 2, Code: "organic", Datatype: attr.Boolean, ShouldExtractValues: true,
			RegexPatterns: []string{`\borganic\b`, `\borganically\b`}},
		{ID: 3, Code: "abv", Datatype: attr.Float, ShouldExtractValues: true, ShouldExtractFromName: true,
			RegexPatterns: []string{`(\d+(?:\.\d+)?)% abv`}},
		{ID: 4, Code: "region", Datatype: attr.NodeID, ShouldExtractValues: true, ShouldExtractFromName: true},
		{ID: 5, Code: "varietal", Datatype: attr.NodeID, ShouldExtractFromName: true},
	}
}

func score(v float64) *float64 { return &v }

func seed(t *testing.T, attrs []attr.Definition) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	for _, d := range attrs {
		require.NoError(t, s.UpsertAttribute(ctx, d))
	}
	for _, p := range []store.Product{
		{ID: 1, SourceID: 1, Name: "Napa Valley Cabernet 2018"},
		{ID: 2, SourceID: 1, Name: "Sonoma Merlot"},
	} {
		require.NoError(t, s.UpsertProduct(ctx, p))
	}
	for _, r := range []store.Review{
		{ID: 1, SourceID: 1, SequenceID: 5, MasterProductID: 1, Score: score(90), Content: "Organic farming at its best. Ok."},
		{ID: 2, SourceID: 1, SequenceID: 5, MasterProductID: 1, Score: score(95)},
		{ID: 3, SourceID: 1, SequenceID: 5, MasterProductID: 1, Content: "abcd"},
		{ID: 4, SourceID: 1, SequenceID: 5, MasterProductID: 2, Content: "Lovely wine"},
	} {
		require.NoError(t, s.UpsertReview(ctx, r))
	}
	require.NoError(t, s.UpsertDescription(ctx, store.Description{SourceID: 1, SequenceID: 5, MasterProductID: 1,
		Content: "<p>Grown in Napa.</p><p>Bottled at 14.5% abv.</p>"}))
	require.NoError(t, s.UpsertDescription(ctx, store.Description{SourceID: 1, SequenceID: 5, MasterProductID: 2,
		Content: "Tiny"}))
	return s
}

func newLookup() *fakeLookup {
	return &fakeLookup{hits: []hit{
		{"napa", attr.Candidate{Code: "region", Value: attr.NodeValue(100)}},
		{"cabernet", attr.Candidate{Code: "varietal", Value: attr.NodeValue(103)}},
	}}
}

func deps(s *memstore.Store, lk Lookuper) Deps {
	return Deps{
		Attributes:   s,
		Catalog:      s,
		Descriptions: s,
		Sink:         s,
		Lookup:       lk,
		Tokenizer:    textclean.NewTokenizer(nil),
	}
}

func options() Options {
	return Options{SourceID: 1, SequenceID: 5, Logger: zerolog.Nop()}
}

func newTestExtractor(t *testing.T, attrs []attr.Definition, lk Lookuper) (*Extractor, *memstore.Store) {
	t.Helper()
	s := seed(t, attrs)
	ex, err := New(context.Background(), options(), deps(s, lk))
	require.NoError(t, err)
	return ex, s
}

func ratingRecords(recs []attr.Record) []attr.Record {
	var out []attr.Record
	for _, r := range recs {
		if r.AttributeID == 1 {
			out = append(out, r)
		}
	}
	return out
}

func TestProcessProductAveragesScoredReviews(t *testing.T) {
	ex, _ := newTestExtractor(t, testAttributes(), newLookup())

	recs, err := ex.ProcessProduct(context.Background(), store.Product{ID: 1, SourceID: 1, Name: "Napa Valley Cabernet 2018"})
	require.NoError(t, err)

	ratings := ratingRecords(recs)
	require.Len(t, ratings, 1)
	require.NotNil(t, ratings[0].ValueFloat)
	assert.Equal(t, 92.5, *ratings[0].ValueFloat)
	assert.Equal(t, attr.Float, ratings[0].Datatype)
	assert.Len(t, recs, 4)
}

func TestProcessProductWithoutScoresEmitsNoRating(t *testing.T) {
	ex, _ := newTestExtractor(t, testAttributes(), newLookup())

	recs, err := ex.ProcessProduct(context.Background(), store.Product{ID: 2, SourceID: 1, Name: "Sonoma Merlot"})
	require.NoError(t, err)
	assert.Empty(t, ratingRecords(recs))

	recs, err = ex.ProcessProduct(context.Background(), store.Product{ID: 99, SourceID: 1, Name: "Unknown"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestShortSentencesAreSkipped(t *testing.T) {
	lk := newLookup()
	ex, _ := newTestExtractor(t, testAttributes(), lk)
	ctx := context.Background()

	_, err := ex.ExtractFromText(ctx, "abcd", 1)
	require.NoError(t, err)
	assert.Empty(t, lk.sentences())

	_, err = ex.ExtractFromText(ctx, "abcdef", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcdef"}, lk.sentences())
}

func TestExtractFromTextAccumulatesSentences(t *testing.T) {
	ex, _ := newTestExtractor(t, testAttributes(), newLookup())

	recs, err := ex.ExtractFromText(context.Background(), "Certified organic. From Napa hills. Fine.", 1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].AttributeID)
	assert.Equal(t, int64(4), recs[1].AttributeID)
}

func TestExtractInformationDedupesRegexAndLookup(t *testing.T) {
	lk := &fakeLookup{hits: []hit{{"organic", attr.Candidate{Code: "organic", Value: attr.BoolValue(true)}}}}
	ex, _ := newTestExtractor(t, testAttributes(), lk)

	recs, err := ex.ExtractInformation(context.Background(), "Organically grown, ORGANIC certified", 1, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, attr.Boolean, recs[0].Datatype)
	require.NotNil(t, recs[0].ValueBoolean)
	assert.True(t, *recs[0].ValueBoolean)
	assert.Equal(t, []string{"organically grown, organic certified"}, lk.sentences())
}

func TestExtractInformationFloatCapture(t *testing.T) {
	ex, _ := newTestExtractor(t, testAttributes(), &fakeLookup{})

	recs, err := ex.ExtractInformation(context.Background(), "Bottled at 13.5% ABV", 1, true)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(3), recs[0].AttributeID)
	assert.Equal(t, 13.5, *recs[0].ValueFloat)
}

func TestExtractInformationDropsBycatch(t *testing.T) {
	ex, _ := newTestExtractor(t, testAttributes(), newLookup())
	ctx := context.Background()

	recs, err := ex.ExtractInformation(ctx, "A fine cabernet", 1, false)
	require.NoError(t, err)
	assert.Empty(t, recs, "varietal is only extracted from names")

	recs, err = ex.ExtractInformation(ctx, "A fine cabernet", 1, true)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(5), recs[0].AttributeID)
}

func TestExtractInformationUnsupportedDatatype(t *testing.T) {
	attrs := append(testAttributes(), attr.Definition{
		ID: 6, Code: "color", Datatype: "string", ShouldExtractValues: true, RegexPatterns: []string{`\bred\b`},
	})
	ex, _ := newTestExtractor(t, attrs, &fakeLookup{})

	_, err := ex.ExtractInformation(context.Background(), "deep red colour", 1, false)
	assert.True(t, errors.Is(err, internalerr.ErrUnsupportedDatatype))

	_, err = ex.ExtractInformation(context.Background(), "deep purple colour", 1, false)
	assert.NoError(t, err)
}

func TestExtractInformationUnrecognizedCandidate(t *testing.T) {
	lk := &fakeLookup{hits: []hit{{"napa", attr.Candidate{Code: "region"}}}}
	ex, _ := newTestExtractor(t, testAttributes(), lk)

	_, err := ex.ExtractInformation(context.Background(), "Napa Valley", 1, false)
	assert.True(t, errors.Is(err, internalerr.ErrUnrecognizedCandidate))
}

func TestExtractInformationLookupFailure(t *testing.T) {
	boom := errors.New("lookup down")
	ex, _ := newTestExtractor(t, testAttributes(), &fakeLookup{err: boom})

	_, err := ex.ExtractInformation(context.Background(), "Napa Valley", 1, false)
	assert.True(t, errors.Is(err, boom))
}

func TestNewValidatesAttributes(t *testing.T) {
	ctx := context.Background()

	empty := memstore.New()
	_, err := New(ctx, options(), deps(empty, newLookup()))
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))

	noRating := seed(t, testAttributes()[1:])
	_, err = New(ctx, options(), deps(noRating, newLookup()))
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))

	badPattern := seed(t, append(testAttributes(), attr.Definition{
		ID: 7, Code: "x", Datatype: attr.Boolean, ShouldExtractValues: true, RegexPatterns: []string{"("},
	}))
	_, err = New(ctx, options(), deps(badPattern, newLookup()))
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))

	_, err = New(ctx, options(), Deps{})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))
}

func TestProcessAllTwoPasses(t *testing.T) {
	ex, s := newTestExtractor(t, testAttributes(), newLookup())

	summary, err := ex.ProcessAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Products)
	assert.Equal(t, 4, summary.ReviewRecords)
	assert.Equal(t, 2, summary.DescriptionRecords)
	assert.Equal(t, ex.RunID(), summary.RunID)
	assert.Equal(t, 2, s.BulkUpserts())

	stored, err := s.AttributeValues(context.Background(), 1, 5)
	require.NoError(t, err)
	var attrIDs []int64
	for _, r := range stored {
		assert.Equal(t, int64(5), r.SequenceID)
		assert.Equal(t, int64(1), r.MasterProductID)
		attrIDs = append(attrIDs, r.AttributeID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, attrIDs)
}

func TestProcessAllDebugFilter(t *testing.T) {
	lk := newLookup()
	s := seed(t, testAttributes())
	opts := options()
	opts.DebugProductFilter = "Sonoma"
	ex, err := New(context.Background(), opts, deps(s, lk))
	require.NoError(t, err)

	summary, err := ex.ProcessAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Products)
	assert.Equal(t, 1, summary.Filtered)
	assert.Equal(t, 0, summary.ReviewRecords+summary.DescriptionRecords)
	for _, sentence := range lk.sentences() {
		assert.NotContains(t, sentence, "napa")
	}
}

func TestRunChunksMatchesSingleRun(t *testing.T) {
	s := seed(t, testAttributes())
	opts := options()

	var mu sync.Mutex
	last := map[Pass]int{}
	opts.Progress = func(pass Pass, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 2, total)
		last[pass] = done
	}

	summary, err := RunChunks(context.Background(), opts, deps(s, newLookup()), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Products)
	assert.Equal(t, 4, summary.ReviewRecords)
	assert.Equal(t, 2, summary.DescriptionRecords)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, map[Pass]int{PassReviews: 2, PassDescriptions: 2}, last)

	stored, err := s.AttributeValues(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

type countingDescriptions struct {
	store.DescriptionSource
	mu    sync.Mutex
	calls int
}

func (c *countingDescriptions) DescriptionContents(ctx context.Context, sourceID, sequenceID int64) (map[int64]string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.DescriptionSource.DescriptionContents(ctx, sourceID, sequenceID)
}

func TestDescriptionsFetchedOncePerRun(t *testing.T) {
	t.Run("single run", func(t *testing.T) {
		s := seed(t, testAttributes())
		d := deps(s, newLookup())
		counter := &countingDescriptions{DescriptionSource: s}
		d.Descriptions = counter

		ex, err := New(context.Background(), options(), d)
		require.NoError(t, err)
		summary, err := ex.ProcessAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, summary.DescriptionRecords)
		assert.Equal(t, 1, counter.calls)
	})

	t.Run("one product per chunk", func(t *testing.T) {
		s := seed(t, testAttributes())
		d := deps(s, newLookup())
		counter := &countingDescriptions{DescriptionSource: s}
		d.Descriptions = counter

		summary, err := RunChunks(context.Background(), options(), d, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.DescriptionRecords)
		assert.Equal(t, 1, counter.calls)
	})
}

func TestRunChunksPropagatesFailure(t *testing.T) {
	boom := errors.New("lookup down")
	s := seed(t, testAttributes())

	_, err := RunChunks(context.Background(), options(), deps(s, &fakeLookup{err: boom}), 2, 1)
	assert.True(t, errors.Is(err, boom))
}

func TestChunkify(t *testing.T) {
	ps := []store.Product{{ID: 1}, {ID: 2}, {ID: 3}}
	assert.Len(t, chunkify(ps, 0), 1)
	assert.Len(t, chunkify(ps, 2), 2)
	assert.Len(t, chunkify(ps, 5), 1)
}

func TestPatternMatcherOneCandidatePerPattern(t *testing.T) {
	pm, err := NewPatternMatcher(testAttributes())
	require.NoError(t, err)
	assert.Equal(t, 2, pm.Len())

	cands, err := pm.Match("organic and organically farmed")
	require.NoError(t, err)
	assert.Len(t, cands, 2)
	for _, c := range cands {
		assert.Equal(t, attr.BoolValue(true), c.Value)
	}
}
