package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	lex := New()
	lex.AddGroup("Cabernet", []string{"cab", "CABERNETS", "cab"})

	assert.Equal(t, "cabernet", lex.Normalize("cab"))
	assert.Equal(t, "cabernet", lex.Normalize("cabernets"))
	assert.Equal(t, "cabernet", lex.Normalize("cabernet"))
	assert.Equal(t, "merlot", lex.Normalize("merlot"))
	assert.Equal(t, []string{"cabernet", "cab", "cabernets"}, lex.Variants("cab"))
	assert.Equal(t, []string{"syrah"}, lex.Variants("syrah"))
}

func TestAddGroupReplaces(t *testing.T) {
	lex := New()
	lex.AddGroup("sauvignon", []string{"sauv"})
	lex.AddGroup("sauvignon", []string{"sauvi"})

	assert.Equal(t, "sauv", lex.Normalize("sauv"))
	assert.Equal(t, "sauvignon", lex.Normalize("sauvi"))
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	content := `synonyms:
  - canonical: cabernet
    variants: [cab, cabernets]
  - canonical: ""
    variants: [ignored]
  - canonical: chardonnay
    variants: [chard]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lex, err := LoadFromYAML(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"cabernet", "chardonnay"}, lex.Canonicals())
	assert.Equal(t, "chardonnay", lex.Normalize("chard"))
	assert.Equal(t, "ignored", lex.Normalize("ignored"))
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	_, err := LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
