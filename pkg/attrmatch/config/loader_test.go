package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store/memstore"
)

func TestLoaderDefaults(t *testing.T) {
	comp, err := (&Loader{}).Load()
	require.NoError(t, err)
	assert.Nil(t, comp.Lexicon)
	assert.True(t, comp.Stoplist.IsStop("the"))
	assert.Equal(t, []string{"napa", "valley"}, comp.Tokenizer.Tokenize("The Napa Valley"))
}

func TestLoaderFiles(t *testing.T) {
	dir := t.TempDir()
	stop := writeFile(t, dir, "stoplist.yaml", "terms:\n  - wine\n  - bottle\n")
	lex := writeFile(t, dir, "lexicon.yaml", `
synonyms:
  - canonical: cabernet
    variants: [cab]
`)

	comp, err := (&Loader{StoplistPath: stop, LexiconPath: lex}).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, comp.Stoplist.Len())
	require.NotNil(t, comp.Lexicon)
	assert.Equal(t, []string{"great", "cabernet"}, comp.Tokenizer.Tokenize("great cab wine"))
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := (&Loader{StoplistPath: "/nonexistent/stoplist.yaml"}).Load()
	assert.ErrorContains(t, err, "load stoplist")

	_, err = (&Loader{LexiconPath: "/nonexistent/lexicon.yaml"}).Load()
	assert.ErrorContains(t, err, "load lexicon")
}

const fixtureYAML = `
attributes:
  - {id: 1, code: rating, datatype: float, should_extract_values: true}
  - {id: 4, code: region, datatype: node_id, should_extract_values: true, should_extract_from_name: true}
dictionary:
  - {id: 10, attribute_id: 4, entity_id: 100, text_value: Napa Valley, attribute_code: region}
products:
  - {id: 1, source_id: 7, name: Reserve Cabernet}
reviews:
  - {id: 1, source_id: 7, sequence_id: 3, master_product_id: 1, score: 92, content: "Lovely."}
  - {id: 2, source_id: 7, sequence_id: 3, master_product_id: 1, content: "No score here."}
descriptions:
  - {source_id: 7, sequence_id: 3, master_product_id: 1, content: "From Napa Valley."}
`

func TestFixtureApply(t *testing.T) {
	ctx := context.Background()
	f, err := ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)

	s := memstore.New()
	require.NoError(t, f.Apply(ctx, s))

	attrs, err := s.Attributes(ctx)
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.True(t, attrs[1].ShouldExtractFromName)

	rows, err := s.DictionaryRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Napa Valley", rows[0].TextValue)

	reviews, err := s.Reviews(ctx, 7, 3)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	require.NotNil(t, reviews[0].Score)
	assert.Equal(t, 92.0, *reviews[0].Score)
	assert.Nil(t, reviews[1].Score)

	desc, err := s.DescriptionContents(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, "From Napa Valley.", desc[1])
}

func TestFixtureRejectsInvalidRow(t *testing.T) {
	f, err := ParseFixture([]byte("dictionary:\n  - {id: 10, attribute_id: 4, text_value: '  '}\n"))
	require.NoError(t, err)

	s := memstore.New()
	err = f.Apply(context.Background(), s)
	assert.ErrorIs(t, err, internalerr.ErrMissingField)

	rows, err := s.DictionaryRows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
