package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/attrmatch/pkg/attrmatch/lexicon"
	"github.com/cognicore/attrmatch/pkg/attrmatch/stoplist"
	"github.com/cognicore/attrmatch/pkg/attrmatch/textclean"
)

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}

// Loader loads the text normalization files and constructs the tokenizer
type Loader struct {
	StoplistPath string
	LexiconPath  string
}

// Components holds the loaded text normalization components
type Components struct {
	Stoplist  *stoplist.Manager
	Lexicon   *lexicon.Lexicon // nil when no lexicon is configured
	Tokenizer *textclean.Tokenizer
}

// Load reads the configured files. Without a stoplist file the built-in
// English stopwords are used.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.StoplistPath != "" {
		sl, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Stoplist = stoplist.NewManager(sl.Terms)
	} else {
		comp.Stoplist = stoplist.NewManager(stoplist.Default())
	}
	comp.Tokenizer = textclean.NewTokenizer(comp.Stoplist)

	if l.LexiconPath != "" {
		lex, err := lexicon.LoadFromYAML(l.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
		comp.Lexicon = lex
		comp.Tokenizer.SetLexicon(lex)
	}

	return comp, nil
}

// Loader returns a Loader for the configured normalization files.
func (c *Config) Loader() *Loader {
	return &Loader{
		StoplistPath: c.Dictionary.StoplistPath,
		LexiconPath:  c.Dictionary.LexiconPath,
	}
}
