// Package features derives the text features stored with each memory
// entry: keywords, entities, a complexity score and a sentiment value.
//
// The heuristics are lexical and deterministic. They are good enough to
// drive the keyword retrieval strategy and the complexity prioritization;
// they are not a language model.
package features

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/fulvian/devstream/pkg/types"
)

// Defaults for Extractor
const (
	DefaultMaxKeywords   = 10
	DefaultMaxEntities   = 20
	DefaultMinWordLength = 3
)

// KeywordExtractor extracts query keywords for the keyword strategy
type KeywordExtractor interface {
	ExtractKeywords(text string) []string
}

// Extractor implements all feature heuristics
type Extractor struct {
	MaxKeywords   int
	MaxEntities   int
	MinWordLength int
}

// NewExtractor creates an extractor with default limits
func NewExtractor() *Extractor {
	return &Extractor{
		MaxKeywords:   DefaultMaxKeywords,
		MaxEntities:   DefaultMaxEntities,
		MinWordLength: DefaultMinWordLength,
	}
}

// Features bundles every extracted feature of one text
type Features struct {
	Keywords        []string
	Entities        []string
	ComplexityScore int
	Sentiment       float64
}

// Extract runs every heuristic over text
func (e *Extractor) Extract(text string) Features {
	return Features{
		Keywords:        e.ExtractKeywords(text),
		Entities:        e.ExtractEntities(text),
		ComplexityScore: e.EstimateComplexity(text),
		Sentiment:       e.EstimateSentiment(text),
	}
}

// words splits text into lowercase letter/digit/underscore runs
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ExtractKeywords returns the most frequent significant words, most
// frequent first; ties keep first-occurrence order. Stop words, short
// words and bare numbers are dropped.
func (e *Extractor) ExtractKeywords(text string) []string {
	minLen := e.MinWordLength
	if minLen <= 0 {
		minLen = DefaultMinWordLength
	}

	type candidate struct {
		word  string
		count int
	}
	byWord := make(map[string]*candidate)
	order := make([]*candidate, 0)

	for _, w := range words(text) {
		if len([]rune(w)) < minLen || stopWords[w] || isNumber(w) {
			continue
		}
		if c, ok := byWord[w]; ok {
			c.count++
			continue
		}
		c := &candidate{word: w, count: 1}
		byWord[w] = c
		order = append(order, c)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	limit := e.MaxKeywords
	if limit <= 0 || limit > len(order) {
		limit = len(order)
	}

	keywords := make([]string, limit)
	for i := 0; i < limit; i++ {
		keywords[i] = order[i].word
	}
	return keywords
}

// ExtractEntities returns identifier-like tokens in order of appearance:
// backtick spans, CamelCase names, dotted or snake_case identifiers and
// acronyms.
func (e *Extractor) ExtractEntities(text string) []string {
	limit := e.MaxEntities
	if limit <= 0 {
		limit = DefaultMaxEntities
	}

	seen := make(map[string]struct{})
	entities := make([]string, 0)
	add := func(s string) bool {
		s = strings.Trim(s, ".,;:!?\"'()[]{}")
		if s == "" {
			return true
		}
		if _, ok := seen[s]; ok {
			return true
		}
		seen[s] = struct{}{}
		entities = append(entities, s)
		return len(entities) < limit
	}

	// Backtick spans first, then strip them from the text
	rest := text
	for {
		start := strings.IndexByte(rest, '`')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start+1:], '`')
		if end < 0 {
			break
		}
		span := rest[start+1 : start+1+end]
		if !strings.ContainsAny(span, "\n") && !add(span) {
			return entities
		}
		rest = rest[:start] + " " + rest[start+2+end:]
	}

	for _, token := range strings.Fields(rest) {
		token = strings.Trim(token, ".,;:!?\"'()[]{}")
		if isEntity(token) && !add(token) {
			return entities
		}
	}
	return entities
}

// isEntity reports whether token looks like a named identifier
func isEntity(token string) bool {
	runes := []rune(token)
	if len(runes) < 2 {
		return false
	}

	var upper, lower, letters int
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			upper++
			letters++
		case unicode.IsLower(r):
			lower++
			letters++
		}
	}
	if letters == 0 {
		return false
	}

	switch {
	case strings.Contains(token, "_") || (strings.Contains(token, ".") && !strings.HasSuffix(token, ".")):
		// snake_case or pkg.Name
		return true
	case upper >= 2 && lower == 0:
		// Acronym: JWT, HTTP, SQL
		return true
	case upper >= 1 && lower >= 1 && hasInnerUpper(runes):
		// CamelCase or camelCase
		return true
	}
	return false
}

func hasInnerUpper(runes []rune) bool {
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i-1]) {
			return true
		}
	}
	return false
}

// codeMarkers are tokens that indicate source code
var codeMarkers = []string{
	"{", "}", "(", ")", ";", "=>", "->", ":=", "==", "!=",
	"func ", "def ", "class ", "return ", "import ", "if ", "for ", "while ",
}

// EstimateComplexity scores text from 1 (trivial) to 10 (dense).
// It combines length, line count, code density and vocabulary size.
func (e *Extractor) EstimateComplexity(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.MinComplexity
	}

	score := 1.0

	// Length: up to +3, logarithmic
	score += math.Min(3, math.Log10(float64(len(text))/50+1)*2)

	// Lines: up to +2
	lines := strings.Count(text, "\n") + 1
	switch {
	case lines > 50:
		score += 2
	case lines > 10:
		score++
	}

	// Code markers: up to +3
	var markers int
	for _, m := range codeMarkers {
		markers += strings.Count(text, m)
	}
	density := float64(markers) / math.Max(1, float64(len(strings.Fields(text))))
	score += math.Min(3, density*6)

	// Vocabulary: up to +1 for long average word length
	ws := words(text)
	if len(ws) > 0 {
		var total int
		for _, w := range ws {
			total += len([]rune(w))
		}
		if avg := float64(total) / float64(len(ws)); avg > 6 {
			score++
		}
	}

	result := int(math.Round(score))
	if result < types.MinComplexity {
		return types.MinComplexity
	}
	if result > types.MaxComplexity {
		return types.MaxComplexity
	}
	return result
}

// EstimateSentiment returns (positive - negative) / (positive + negative)
// over a small lexicon, or 0 when no lexicon word occurs. Negators flip
// the polarity of the following word.
func (e *Extractor) EstimateSentiment(text string) float64 {
	var positive, negative float64
	negate := false

	for _, w := range words(text) {
		// Skip contraction tails like the t in isn't
		if len(w) < 2 {
			continue
		}
		if negators[w] {
			negate = true
			continue
		}

		polarity := 0.0
		switch {
		case positiveWords[w]:
			polarity = 1
		case negativeWords[w]:
			polarity = -1
		}
		if negate {
			polarity = -polarity
			negate = false
		}

		switch {
		case polarity > 0:
			positive++
		case polarity < 0:
			negative++
		}
	}

	if positive+negative == 0 {
		return 0
	}
	return (positive - negative) / (positive + negative)
}
