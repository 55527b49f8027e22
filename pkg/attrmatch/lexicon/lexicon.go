package lexicon

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon maps spelling variants and abbreviations that appear in scraped
// product text onto one canonical token, so dictionary entities and review
// sentences agree on the token used for weighting and matching.
//
// Example: "cab" and "cabernet" both normalize to "cabernet".
type Lexicon struct {
	// canonical -> all variants (canonical first)
	groups map[string][]string

	// variant -> canonical
	reverseIndex map[string]string
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{
		groups:       make(map[string][]string),
		reverseIndex: make(map[string]string),
	}
}

// LoadFromYAML loads synonym groups from a YAML file.
//
// Expected format:
//
//	synonyms:
//	  - canonical: cabernet
//	    variants: [cab, cabernets]
//	  - canonical: sauvignon
//	    variants: [sauv]
//
// Variants are single tokens; everything is lower-cased.
func LoadFromYAML(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Synonyms []struct {
			Canonical string   `yaml:"canonical"`
			Variants  []string `yaml:"variants"`
		} `yaml:"synonyms"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	lex := New()
	for _, entry := range doc.Synonyms {
		if strings.TrimSpace(entry.Canonical) == "" {
			continue
		}
		lex.AddGroup(entry.Canonical, entry.Variants)
	}
	return lex, nil
}

// AddGroup registers a canonical token and its variants. Re-adding a
// canonical replaces its previous variants.
func (l *Lexicon) AddGroup(canonical string, variants []string) {
	canonical = strings.ToLower(strings.TrimSpace(canonical))

	if old, exists := l.groups[canonical]; exists {
		for _, v := range old {
			delete(l.reverseIndex, v)
		}
	}

	group := []string{canonical}
	seen := map[string]bool{canonical: true}
	for _, v := range variants {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		group = append(group, v)
	}

	l.groups[canonical] = group
	for _, v := range group {
		l.reverseIndex[v] = canonical
	}
}

// Normalize returns the canonical form of a token, or the token itself when
// it is unknown.
func (l *Lexicon) Normalize(token string) string {
	if canonical, ok := l.reverseIndex[token]; ok {
		return canonical
	}
	return token
}

// Variants returns every known spelling of a token, canonical first.
func (l *Lexicon) Variants(token string) []string {
	token = strings.ToLower(token)
	if canonical, ok := l.reverseIndex[token]; ok {
		return l.groups[canonical]
	}
	return []string{token}
}

// Canonicals returns the canonical tokens in lexical order.
func (l *Lexicon) Canonicals() []string {
	out := make([]string, 0, len(l.groups))
	for c := range l.groups {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
