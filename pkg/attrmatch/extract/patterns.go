package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
)

// PatternMatcher runs the configured regex patterns of a set of attributes.
type PatternMatcher struct {
	rules []patternRule
}

type patternRule struct {
	def      attr.Definition
	patterns []*regexp.Regexp
}

// NewPatternMatcher compiles the patterns of defs, case-insensitively.
// Definitions without patterns are ignored.
func NewPatternMatcher(defs []attr.Definition) (*PatternMatcher, error) {
	pm := &PatternMatcher{}
	for _, d := range defs {
		if len(d.RegexPatterns) == 0 {
			continue
		}
		rule := patternRule{def: d}
		for _, p := range d.RegexPatterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("attribute %s pattern %q: %v: %w", d.Code, p, err, internalerr.ErrInvalidConfig)
			}
			rule.patterns = append(rule.patterns, re)
		}
		pm.rules = append(pm.rules, rule)
	}
	return pm, nil
}

// Len returns the number of attributes carrying patterns.
func (pm *PatternMatcher) Len() int {
	return len(pm.rules)
}

// Match tests every pattern against sentence. Each matching pattern emits one
// candidate: true for boolean attributes, the first capture group for float
// attributes. Any other datatype is a configuration error.
func (pm *PatternMatcher) Match(sentence string) ([]attr.Candidate, error) {
	var out []attr.Candidate
	for _, rule := range pm.rules {
		for _, re := range rule.patterns {
			groups := re.FindStringSubmatch(sentence)
			if groups == nil {
				continue
			}
			switch rule.def.Datatype {
			case attr.Boolean:
				out = append(out, attr.Candidate{Code: rule.def.Code, Value: attr.BoolValue(true)})
			case attr.Float:
				if len(groups) < 2 {
					return nil, fmt.Errorf("attribute %s pattern %q has no capture group: %w", rule.def.Code, re, internalerr.ErrInvalidConfig)
				}
				f, err := strconv.ParseFloat(strings.TrimSpace(groups[1]), 64)
				if err != nil {
					return nil, fmt.Errorf("attribute %s pattern %q captured %q: %w", rule.def.Code, re, groups[1], internalerr.ErrInvalidConfig)
				}
				out = append(out, attr.Candidate{Code: rule.def.Code, Value: attr.FloatValue(f)})
			default:
				return nil, fmt.Errorf("attribute %s datatype %q: %w", rule.def.Code, rule.def.Datatype, internalerr.ErrUnsupportedDatatype)
			}
		}
	}
	return out, nil
}
