package textclean

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinSentenceLength is the length (in characters) at or below which a
// sentence is too short to carry signal and is skipped by extraction.
const MinSentenceLength = 5

// SplitSentences splits free text into trimmed sentences. A sentence ends at
// a newline, or at '.', '!' or '?' followed by whitespace or end of text, so
// decimals such as "4.5" and abbreviations inside a token are not split.
func SplitSentences(text string) []string {
	var out []string
	var current strings.Builder

	emit := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	for i := 0; i < len(text); {
		r, w := utf8.DecodeRuneInString(text[i:])
		i += w

		if r == '\n' || r == '\r' {
			emit()
			continue
		}

		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i >= len(text) {
				break
			}
			next, _ := utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(next) {
				emit()
			}
		}
	}
	emit()

	return out
}

// TooShort reports whether a sentence is at or below MinSentenceLength
// characters.
func TooShort(sentence string) bool {
	return utf8.RuneCountInString(sentence) <= MinSentenceLength
}
