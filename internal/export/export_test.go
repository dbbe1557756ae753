package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/mindloop/models"
)

func sampleCycle() *models.Cycle {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := models.NewCycle("c1", 3, "tides", base)
	c.Append(models.AgentThought{ID: "t2", AgentRole: "geometer", Essence: "orbits <script>alert(1)</script>", Reasoning: "r", Kind: models.KindExecution, RoundNumber: 1, Timestamp: base.Add(2 * time.Second)})
	c.Append(models.AgentThought{ID: "t1", AgentRole: "observer", Essence: "plan", Kind: models.KindAnalysis, RoundNumber: 1, Timestamp: base.Add(time.Second)})
	c.Append(models.UserComment{ID: "u1", Content: "what about the sun?", RoundNumber: 1, Timestamp: base.Add(3 * time.Second)})
	c.Synthesis = "all done"
	c.Status = models.StatusCompleted
	c.EndTime = base.Add(time.Minute)
	return c
}

func names(role string) string {
	if role == "observer" {
		return "Observer"
	}
	return role
}

func TestMarkdownOrdersByTime(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Markdown, []*models.Cycle{sampleCycle()}, names); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# Cycle 3: tides") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	plan := strings.Index(out, "### Observer · analysis")
	orbit := strings.Index(out, "### geometer · execution")
	comment := strings.Index(out, "**User**")
	if plan < 0 || orbit < 0 || comment < 0 || !(plan < orbit && orbit < comment) {
		t.Fatalf("entries out of order:\n%s", out)
	}
	if !strings.Contains(out, "## Synthesis\n\nall done") {
		t.Fatalf("missing synthesis:\n%s", out)
	}
}

func TestHTMLIsEscapedAndSanitized(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, HTML, []*models.Cycle{sampleCycle()}, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>") {
		t.Fatalf("script survived export:\n%s", out)
	}
	for _, want := range []string{"<h1>Cycle 3: tides</h1>", "<details>", "what about the sun?", "all done"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": Markdown, "MD": Markdown, "markdown": Markdown, "html": HTML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatalf("expected error for pdf")
	}
	if HTML.ContentType() != "text/html; charset=utf-8" {
		t.Fatalf("unexpected content type %q", HTML.ContentType())
	}
}
