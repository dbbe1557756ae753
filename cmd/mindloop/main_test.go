package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/events"
)

func TestOneLine(t *testing.T) {
	if got := oneLine("a\n  b\tc", 10); got != "a b c" {
		t.Fatalf("unexpected %q", got)
	}
	if got := oneLine("ééééé", 3); got != "ééé..." {
		t.Fatalf("unexpected %q", got)
	}
}

func TestNamerFallsBackToRole(t *testing.T) {
	n := namer([]agents.Config{{Role: "geometer", Name: "The Geometer"}})
	if n("geometer") != "The Geometer" || n("ghost") != "ghost" {
		t.Fatalf("unexpected names %q %q", n("geometer"), n("ghost"))
	}
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	printEvent(&buf, events.Event{Type: events.PhaseChanged, Phase: "execution", Round: 1, TotalRounds: 2, At: at})
	printEvent(&buf, events.Event{Type: events.AgentFailed, Role: "physicist", Message: "timeout", At: at})
	out := buf.String()
	if !strings.Contains(out, "execution (round 1/2)") || !strings.Contains(out, "physicist: timeout") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
