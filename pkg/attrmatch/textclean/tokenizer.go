package textclean

import (
	"strings"
	"unicode"

	"github.com/cognicore/attrmatch/pkg/attrmatch/lexicon"
	"github.com/cognicore/attrmatch/pkg/attrmatch/stoplist"
)

// Tokenizer turns raw attribute text into normalized tokens: lower-cased,
// punctuation-aware, stopwords removed. Output is deterministic,
// order-preserving and idempotent on already-normalized input.
type Tokenizer struct {
	stops   *stoplist.Manager
	lexicon *lexicon.Lexicon // Optional: variant normalization
}

// NewTokenizer creates a tokenizer backed by the given stoplist. A nil
// manager means no stopwords.
func NewTokenizer(stops *stoplist.Manager) *Tokenizer {
	if stops == nil {
		stops = stoplist.NewManager(nil)
	}
	return &Tokenizer{stops: stops}
}

// SetLexicon assigns a lexicon for variant normalization.
// When set, tokens are replaced by their canonical forms before the
// stopword check. Example: "cab" -> "cabernet"
func (t *Tokenizer) SetLexicon(lex *lexicon.Lexicon) {
	t.lexicon = lex
}

// Stoplist returns the stoplist the tokenizer filters against.
func (t *Tokenizer) Stoplist() *stoplist.Manager {
	return t.stops
}

// Tokenize splits text into normalized tokens, removing stopwords.
// Letters, digits and the joiners '-', '.', '\'' are kept inside tokens so
// values like "st.-emilion", "4.5" and "l'ecole" survive intact.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if word := t.processToken(current.String()); word != "" {
			tokens = append(tokens, word)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || isJoiner(r) {
			current.WriteRune(unicode.ToLower(normalizeJoiner(r)))
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// Normalize returns the tokens of text joined by single spaces. This is the
// normalized_text of a dictionary entity.
func (t *Tokenizer) Normalize(text string) string {
	return strings.Join(t.Tokenize(text), " ")
}

// NormalizeSentence lower-cases a sentence and drops stopword words while
// leaving punctuation inside words untouched, so regex patterns written
// against raw review text ("92 pts.", "4.5/5") still apply.
func (t *Tokenizer) NormalizeSentence(sentence string) string {
	words := strings.Fields(strings.ToLower(sentence))
	kept := words[:0]
	for _, w := range words {
		if t.stops.IsStop(w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// processToken applies cleaning, lexicon normalization, and stopword filtering.
func (t *Tokenizer) processToken(token string) string {
	word := cleanToken(token)
	if word == "" {
		return ""
	}

	if t.lexicon != nil {
		word = t.lexicon.Normalize(word)
	}

	if t.stops.IsStop(word) {
		return ""
	}
	return word
}

// cleanToken strips leading/trailing joiners and collapses repeated hyphens.
func cleanToken(token string) string {
	token = strings.Trim(token, "-.'")
	for strings.Contains(token, "--") {
		token = strings.ReplaceAll(token, "--", "-")
	}
	return token
}

func isJoiner(r rune) bool {
	switch r {
	case '-', '.', '\'', '’', '–':
		return true
	}
	return false
}

func normalizeJoiner(r rune) rune {
	switch r {
	case '’':
		return '\''
	case '–':
		return '-'
	}
	return r
}
