package parser

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseLabeledSections(t *testing.T) {
	got := Parse("[REASONING] x y [ESSENCE] z", AgentEssenceCap)
	if got.Strategy != StrategySections {
		t.Fatalf("expected sections strategy, got %s", got.Strategy)
	}
	if got.Reasoning != "x y" || got.Essence != "z" {
		t.Fatalf("unexpected split: %+v", got)
	}
}

func TestParseSectionsEssenceStopsAtNextHeader(t *testing.T) {
	raw := "[PHYSICAL MODEL]\nfields and forces\n[ESSENCE]\nenergy flows downhill\n[NOTES] ignore me"
	got := Parse(raw, AgentEssenceCap)
	if got.Reasoning != "fields and forces" || got.Essence != "energy flows downhill" {
		t.Fatalf("unexpected split: %+v", got)
	}
}

func TestParseTruncatesEssencePerRole(t *testing.T) {
	long := strings.Repeat("é", 6000)
	raw := "[REASONING] r [ESSENCE] " + long

	agent := Parse(raw, EssenceCap(false))
	if n := utf8.RuneCountInString(agent.Essence); n != AgentEssenceCap {
		t.Fatalf("agent essence length %d, want %d", n, AgentEssenceCap)
	}
	coord := Parse(raw, EssenceCap(true))
	if n := utf8.RuneCountInString(coord.Essence); n != CoordinatorEssenceCap {
		t.Fatalf("coordinator essence length %d, want %d", n, CoordinatorEssenceCap)
	}
	if !utf8.ValidString(agent.Essence) {
		t.Fatalf("truncation produced invalid utf-8")
	}
}

func TestParseKeywordSplit(t *testing.T) {
	head := strings.Repeat("The structure keeps unfolding in layers ", 4)
	raw := head + "Key insight: symmetry explains the pattern observed across every layer of the system."
	got := Parse(raw, AgentEssenceCap)
	if got.Strategy != StrategyKeyword {
		t.Fatalf("expected keyword strategy, got %s", got.Strategy)
	}
	if !strings.HasPrefix(got.Essence, "Key insight:") {
		t.Fatalf("unexpected essence %q", got.Essence)
	}
}

func TestParseLastParagraphHeuristic(t *testing.T) {
	p1 := strings.Repeat("first paragraph words ", 10)
	p2 := strings.Repeat("second paragraph words ", 10)
	last := "A compact closing idea of modest size"
	raw := p1 + "\n\n" + p2 + "\n\n" + last

	got := Parse(raw, AgentEssenceCap)
	if got.Strategy != StrategyParagraphs {
		t.Fatalf("expected paragraph strategy, got %s", got.Strategy)
	}
	if got.Essence != last {
		t.Fatalf("expected last paragraph as essence, got %q", got.Essence)
	}
	if !strings.HasPrefix(got.Reasoning, "first paragraph") || !strings.Contains(got.Reasoning, "\n\nsecond") {
		t.Fatalf("unexpected reasoning %q", got.Reasoning)
	}
}

func TestParseSentenceSplit(t *testing.T) {
	raw := "Waves interfere with each other. Patterns emerge from the overlap. The overlap forms nodes everywhere. Nodes mark stillness inside motion"
	got := Parse(raw, AgentEssenceCap)
	if got.Strategy != StrategySentences {
		t.Fatalf("expected sentence strategy, got %s", got.Strategy)
	}
	if got.Essence != "Nodes mark stillness inside motion." {
		t.Fatalf("unexpected essence %q", got.Essence)
	}
	if !strings.HasPrefix(got.Reasoning, "Waves interfere") || !strings.HasSuffix(got.Reasoning, ".") {
		t.Fatalf("unexpected reasoning %q", got.Reasoning)
	}
}

func TestParseFallbackSplit(t *testing.T) {
	raw := "abcdefghijklmnopqrst"
	got := Parse(raw, AgentEssenceCap)
	if got.Strategy != StrategySplit {
		t.Fatalf("expected split strategy, got %s", got.Strategy)
	}
	if got.Reasoning != "abcdefghijklmno" || got.Essence != "pqrst" {
		t.Fatalf("unexpected split: %+v", got)
	}
}

func TestParseEmptyInputDoesNotPanic(t *testing.T) {
	got := Parse("", AgentEssenceCap)
	if got.Reasoning != "" || got.Essence != "" {
		t.Fatalf("expected empty result, got %+v", got)
	}
}
