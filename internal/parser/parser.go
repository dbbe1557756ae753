// Package parser splits free-form model output into reasoning and essence and
// pulls per-agent tasks out of the coordinator's analysis.
package parser

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	CoordinatorEssenceCap = 5000
	AgentEssenceCap       = 1000
)

// Strategy names the cascade step that produced a Result.
type Strategy string

const (
	StrategySections   Strategy = "sections"
	StrategyKeyword    Strategy = "keyword"
	StrategyParagraphs Strategy = "paragraphs"
	StrategySentences  Strategy = "sentences"
	StrategySplit      Strategy = "split"
)

// Result is a parsed response. Parsing never fails; a poor split is a
// degradation, not an error.
type Result struct {
	Reasoning string
	Essence   string
	Strategy  Strategy
}

var (
	reasoningSections = compileAll(
		`(?is)\[REASONING\](.*?)\[ESSENCE\]`,
		`(?is)\[MATHEMATICAL MODEL\](.*?)\[ESSENCE\]`,
		`(?is)\[PHYSICAL MODEL\](.*?)\[ESSENCE\]`,
		`(?is)\[COGNITIVE MODEL\](.*?)\[ESSENCE\]`,
		`(?is)\[PHILOSOPHICAL ANALYSIS\](.*?)\[ESSENCE\]`,
		`(?is)\[SYSTEM MODEL\](.*?)\[ESSENCE\]`,
		`(?is)\[DECONSTRUCTION\](.*?)\[ESSENCE\]`,
		`(?is)\[ANALYSIS\](.*?)\[ESSENCE\]`,
	)
	essenceSection = regexp.MustCompile(`(?is)\[ESSENCE\](.*?)(?:\[|\z)`)

	transitionKeywords = compileAll(
		`(?i)(?:essence|conclusion|key point|bottom line|summary|takeaway)[\s:]`,
		`(?i)(?:in summary|therefore|consequently|in conclusion|thus)[\s:]`,
		`(?i)(?:key insight|main conclusion|main idea)[\s:]`,
	)

	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceBreak  = regexp.MustCompile(`[.!?]+`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// EssenceCap returns the essence length limit, in characters, for a role.
func EssenceCap(coordinator bool) int {
	if coordinator {
		return CoordinatorEssenceCap
	}
	return AgentEssenceCap
}

// Parse splits raw into reasoning and essence. The essence is limited to
// maxEssence characters.
func Parse(raw string, maxEssence int) Result {
	if r, ok := bySections(raw, maxEssence); ok {
		return r
	}
	if r, ok := byKeyword(raw, maxEssence); ok {
		return r
	}
	if r, ok := byParagraphs(raw, maxEssence); ok {
		return r
	}
	if r, ok := bySentences(raw, maxEssence); ok {
		return r
	}
	return bySplit(raw, maxEssence)
}

func bySections(raw string, limit int) (Result, bool) {
	essence := essenceSection.FindStringSubmatch(raw)
	if essence == nil {
		return Result{}, false
	}
	for _, re := range reasoningSections {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		return Result{
			Reasoning: strings.TrimSpace(m[1]),
			Essence:   Truncate(strings.TrimSpace(essence[1]), limit),
			Strategy:  StrategySections,
		}, true
	}
	return Result{}, false
}

func byKeyword(raw string, limit int) (Result, bool) {
	total := utf8.RuneCountInString(raw)
	for _, re := range transitionKeywords {
		loc := re.FindStringIndex(raw)
		if loc == nil {
			continue
		}
		pos := utf8.RuneCountInString(raw[:loc[0]])
		if pos > 100 && pos < total-50 {
			return Result{
				Reasoning: strings.TrimSpace(raw[:loc[0]]),
				Essence:   Truncate(strings.TrimSpace(raw[loc[0]:]), limit),
				Strategy:  StrategyKeyword,
			}, true
		}
	}
	return Result{}, false
}

func byParagraphs(raw string, limit int) (Result, bool) {
	var paragraphs []string
	for _, p := range paragraphBreak.Split(raw, -1) {
		if runeLen(strings.TrimSpace(p)) > 20 {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) < 2 {
		return Result{}, false
	}
	last := strings.TrimSpace(paragraphs[len(paragraphs)-1])
	n := runeLen(last)
	if float64(n) >= float64(runeLen(raw))*0.4 || n <= 30 {
		return Result{}, false
	}
	return Result{
		Reasoning: strings.TrimSpace(strings.Join(paragraphs[:len(paragraphs)-1], "\n\n")),
		Essence:   Truncate(last, limit),
		Strategy:  StrategyParagraphs,
	}, true
}

func bySentences(raw string, limit int) (Result, bool) {
	var sentences []string
	for _, s := range sentenceBreak.Split(raw, -1) {
		if runeLen(strings.TrimSpace(s)) > 10 {
			sentences = append(sentences, s)
		}
	}
	n := len(sentences)
	if n < 3 {
		return Result{}, false
	}
	k := int(math.Ceil(float64(n) * 0.25))
	if k > 3 {
		k = 3
	}
	reasoning := strings.TrimSpace(strings.Join(sentences[:n-k], ". ")) + "."
	essence := strings.TrimSpace(strings.Join(sentences[n-k:], ". ")) + "."
	return Result{
		Reasoning: reasoning,
		Essence:   Truncate(essence, limit),
		Strategy:  StrategySentences,
	}, true
}

func bySplit(raw string, limit int) Result {
	runes := []rune(raw)
	cut := int(float64(len(runes)) * 0.75)
	return Result{
		Reasoning: strings.TrimSpace(string(runes[:cut])),
		Essence:   Truncate(strings.TrimSpace(string(runes[cut:])), limit),
		Strategy:  StrategySplit,
	}
}

// Truncate limits s to n characters without splitting a multi-byte rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
