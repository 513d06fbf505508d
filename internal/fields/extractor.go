package fields

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FieldExtractor = (*PatternExtractor)(nil)

// Rule extracts one field. Patterns are tried in order and the first
// capture group of the first match wins.
type Rule struct {
	Field    string
	Patterns []*regexp.Regexp
	// Date normalises the capture to YYYY-MM-DD and drops unparseable values.
	Date bool
	// Normalise rewrites the capture when set.
	Normalise func(string) string
}

// PatternExtractor is a FieldExtractor driven by regular expression rules.
type PatternExtractor struct {
	name     string
	types    []domain.DocumentType
	priority int
	rules    []Rule
}

// NewPatternExtractor creates an extractor for the given types.
// No types means any type.
func NewPatternExtractor(name string, priority int, types []domain.DocumentType, rules ...Rule) *PatternExtractor {
	return &PatternExtractor{
		name:     name,
		types:    types,
		priority: priority,
		rules:    rules,
	}
}

func (e *PatternExtractor) Name() string                        { return e.name }
func (e *PatternExtractor) Priority() int                       { return e.priority }
func (e *PatternExtractor) DocumentTypes() []domain.DocumentType { return e.types }

// Extract applies every rule to text. Fields without a match are left out.
//
// Patterns run against table cells first and then whole lines, so a
// free-text capture stops at the end of its cell instead of swallowing
// the next label on the same line.
func (e *PatternExtractor) Extract(text string) map[string]string {
	candidates := candidateSpans(text)
	out := make(map[string]string)

	for _, rule := range e.rules {
		if v, ok := applyRule(rule, candidates); ok {
			out[rule.Field] = v
		}
	}
	return out
}

func applyRule(rule Rule, candidates []string) (string, bool) {
	for _, p := range rule.Patterns {
		for _, c := range candidates {
			m := p.FindStringSubmatch(c)
			if len(m) < 2 {
				continue
			}
			v := trimValue(m[1])
			if v == "" {
				continue
			}
			if rule.Date {
				t, ok := domain.ParseDate(v)
				if !ok {
					continue
				}
				v = domain.FormatDate(t)
			}
			if rule.Normalise != nil {
				v = rule.Normalise(v)
			}
			return v, true
		}
	}
	return "", false
}

// candidateSpans splits text into cells followed by whole lines,
// each with its whitespace collapsed.
func candidateSpans(text string) []string {
	lines := splitLines(text)
	var cells, whole []string

	for _, line := range lines {
		parts := cellSplitter.Split(line, -1)
		if len(parts) > 1 {
			for _, p := range parts {
				if p = collapseSpaces(p); p != "" {
					cells = append(cells, p)
				}
			}
		}
		if l := collapseSpaces(line); l != "" {
			whole = append(whole, l)
		}
	}
	return append(cells, whole...)
}

// CleanText normalises line endings, collapses runs of spaces inside
// each line and drops blank lines.
func CleanText(text string) string {
	lines := splitLines(text)
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = collapseSpaces(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trimValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), ",;:")
}
