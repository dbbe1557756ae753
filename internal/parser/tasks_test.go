package parser

import (
	"strings"
	"testing"
)

var twoAgents = []Assignee{{Role: "geometer", Name: "Geometer"}, {Role: "physicist", Name: "Physicist"}}

func TestSectionExtractor(t *testing.T) {
	analysis := `[DISTRIBUTION]
The topic touches shape and motion.
GEOMETER_TASK: map the symmetry group of the problem
and list invariants
PHYSICIST_TASK: model the energy landscape
[COORDINATION]
merge both views`

	tasks := SectionExtractor{}.Extract(analysis, "waves", twoAgents)
	if got := tasks["geometer"]; got != "map the symmetry group of the problem\nand list invariants" {
		t.Fatalf("unexpected geometer task %q", got)
	}
	if got := tasks["physicist"]; got != "model the energy landscape" {
		t.Fatalf("unexpected physicist task %q", got)
	}
}

func TestSectionExtractorFallsBackPerRole(t *testing.T) {
	tasks := SectionExtractor{}.Extract("GEOMETER_TASK: draw it", "waves", twoAgents)
	if tasks["geometer"] != "draw it" {
		t.Fatalf("unexpected geometer task %q", tasks["geometer"])
	}
	want := FallbackTask("waves", "Physicist")
	if tasks["physicist"] != want {
		t.Fatalf("expected fallback task %q, got %q", want, tasks["physicist"])
	}
	if !strings.Contains(want, `"waves"`) {
		t.Fatalf("fallback should quote the topic: %q", want)
	}
}

func TestStructuredExtractor(t *testing.T) {
	analysis := "Plan below.\n```json\n{\"tasks\": {\"GEOMETER\": \"find the lattice\"}}\n```\nPHYSICIST_TASK: estimate forces"
	tasks := StructuredExtractor{}.Extract(analysis, "crystals", twoAgents)
	if tasks["geometer"] != "find the lattice" {
		t.Fatalf("unexpected geometer task %q", tasks["geometer"])
	}
	if tasks["physicist"] != "estimate forces" {
		t.Fatalf("expected section fallback for physicist, got %q", tasks["physicist"])
	}
}

func TestStructuredExtractorRejectsInvalidDocument(t *testing.T) {
	if _, err := ParseTaskDocument(`{"tasks": {"geometer": 5}}`); err == nil {
		t.Fatalf("expected schema violation")
	}
	if _, err := ParseTaskDocument("no json here"); err == nil {
		t.Fatalf("expected missing document error")
	}
	tasks := StructuredExtractor{}.Extract(`{"tasks": {}}`, "t", twoAgents)
	if tasks["geometer"] != FallbackTask("t", "Geometer") {
		t.Fatalf("expected fallback, got %q", tasks["geometer"])
	}
}

func TestParseVerdict(t *testing.T) {
	v := ParseVerdict("[ASSESSMENT] gaps remain\n[DECISION] continue\n[NEXT ROUND] focus on edge cases\n")
	if !v.Continue || v.RefinedTopic != "focus on edge cases" {
		t.Fatalf("unexpected verdict %+v", v)
	}
	if v := ParseVerdict("[DECISION] COMPLETE"); v.Continue {
		t.Fatalf("expected complete verdict")
	}
	if v := ParseVerdict("no decision at all"); v.Continue {
		t.Fatalf("missing decision must mean complete")
	}
}

func TestContinuationTopic(t *testing.T) {
	got := ContinuationTopic("Directions:\nNext cycle: \"How entropy shapes memory\"\nmore", "entropy")
	if got != "How entropy shapes memory" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := ContinuationTopic("short", "entropy"); got != "In-depth study: entropy" {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestSectionExtractorRolesWithDigitsAndHyphens(t *testing.T) {
	analysis := "AGENT-2_TASK: survey the field\nR2D2_TASK: build the droid\nDEEP_THINKER_TASK: ponder"
	roles := []Assignee{{Role: "agent-2", Name: "Agent 2"}, {Role: "r2d2", Name: "R2"}, {Role: "deep_thinker", Name: "Deep"}}

	tasks := SectionExtractor{}.Extract(analysis, "droids", roles)
	if got := tasks["agent-2"]; got != "survey the field" {
		t.Fatalf("unexpected agent-2 task %q", got)
	}
	if got := tasks["r2d2"]; got != "build the droid" {
		t.Fatalf("unexpected r2d2 task %q", got)
	}
	if got := tasks["deep_thinker"]; got != "ponder" {
		t.Fatalf("unexpected deep_thinker task %q", got)
	}
}
