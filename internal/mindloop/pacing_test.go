package mindloop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/mindloop/config"
	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/models"
)

func TestJitterPacerDelays(t *testing.T) {
	p := NewJitterPacer(2*time.Second, time.Second, 5*time.Second, 3*time.Second)
	for i := 0; i < 20; i++ {
		d := p.Next(false)
		if d < 2*time.Second || d >= 3*time.Second {
			t.Fatalf("delay %s outside [2s, 3s)", d)
		}
	}
	if d := p.Next(true); d != 5*time.Second {
		t.Fatalf("expected failure delay 5s, got %s", d)
	}

	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	if err := p.BeforeSynthesis(context.Background()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Fatalf("unexpected settle sleeps %v", slept)
	}
}

func TestNewPacerStrategies(t *testing.T) {
	if _, ok := NewPacer(config.PacingConfig{}).(*JitterPacer); !ok {
		t.Fatalf("default strategy should be jitter")
	}
	if _, ok := NewPacer(config.PacingConfig{Strategy: "token_bucket"}).(*TokenBucketPacer); !ok {
		t.Fatalf("expected token bucket pacer")
	}
	if _, ok := NewPacer(config.PacingConfig{Strategy: "none"}).(NoPacer); !ok {
		t.Fatalf("expected no-op pacer")
	}
}

func TestPacersStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pacers := []Pacer{
		NewJitterPacer(time.Hour, 0, time.Hour, time.Hour),
		NewTokenBucketPacer(0.001, 1, time.Hour),
		NoPacer{},
	}
	for _, p := range pacers {
		if err := p.BeforeSynthesis(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("%T: expected canceled, got %v", p, err)
		}
	}
}

func TestAnalysisPromptListsWorkers(t *testing.T) {
	in := analysisInput{
		topic:    "tides",
		workers:  []agents.Config{{Role: "geometer", Name: "Geometer-Explorer"}},
		comments: []models.UserComment{{Content: "mind the moon"}},
	}
	got := analysisPrompt(in)
	for _, want := range []string{`TOPIC: "tides"`, "Geometer-Explorer (geometer)", "GEOMETER_TASK", "mind the moon"} {
		if !strings.Contains(got, want) {
			t.Fatalf("analysis prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "ROUND:") {
		t.Fatalf("first round prompt should not carry a round line")
	}

	in.structured = true
	in.round = 2
	in.previousSynthesis = "earlier"
	got = analysisPrompt(in)
	for _, want := range []string{"```json", `"geometer"`, "ROUND: 2", "PREVIOUS ROUND SYNTHESIS:\nearlier"} {
		if !strings.Contains(got, want) {
			t.Fatalf("structured prompt missing %q:\n%s", want, got)
		}
	}
}

func TestSynthesisPromptSeparatesResults(t *testing.T) {
	got := synthesisPrompt("t", []agentResult{{name: "A", reasoning: "ra", essence: "ea"}, {name: "B", reasoning: "rb", essence: "eb"}}, nil)
	if !strings.Contains(got, "A:\nANALYSIS: ra\nCONCLUSIONS: ea\n\n---\n\nB:") {
		t.Fatalf("unexpected synthesis prompt:\n%s", got)
	}
}
