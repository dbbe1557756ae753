package mindloop

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/parser"
	"github.com/mohammad-safakhou/mindloop/models"
)

const (
	analysisTokens     = 6000
	synthesisTokens    = 4000
	compensationTokens = 8000
	agentTokens        = 1200
	chaosTokens        = 1000
	evaluationTokens   = 1500
	suggestionTokens   = 1500

	coordinatorTemperature = 0.7
	agentTemperature       = 0.8
)

type analysisInput struct {
	topic             string
	workers           []agents.Config
	comments          []models.UserComment
	previousSynthesis string
	round             int
	structured        bool
}

func analysisPrompt(in analysisInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TOPIC: %q\n", in.topic)
	if in.round > 1 {
		fmt.Fprintf(&b, "ROUND: %d\n", in.round)
	}
	b.WriteString("\nACTIVE AGENTS:\n")
	for _, w := range in.workers {
		fmt.Fprintf(&b, "- %s (%s): %s\n", w.Name, w.Role, w.Description)
	}
	if in.previousSynthesis != "" {
		fmt.Fprintf(&b, "\nPREVIOUS ROUND SYNTHESIS:\n%s\n", in.previousSynthesis)
	}
	writeComments(&b, in.comments)

	b.WriteString("\n[ANALYSIS AND DISTRIBUTION]\nAnalyse the topic and give every ACTIVE agent its own task.\n")
	if in.structured {
		b.WriteString("\n[TASKS]\nReturn the tasks as a JSON object in a ```json block:\n{\"tasks\": {")
		for i, w := range in.workers {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q: \"<task for %s>\"", w.Role, w.Name)
		}
		b.WriteString("}}\n")
	} else {
		b.WriteString("\n[TASKS]\n")
		for _, w := range in.workers {
			fmt.Fprintf(&b, "%s: (a concrete task for %s)\n", parser.SectionHeader(w.Role), w.Name)
		}
	}
	b.WriteString("\n[COORDINATION]\nExplain how the agents' results will be synthesized into the final answer.")
	return b.String()
}

func agentPrompt(topic, task string) string {
	return fmt.Sprintf("Cycle topic: %s\n\nYour task: %s", topic, task)
}

func compensationPrompt(topic string, failed []string) string {
	return fmt.Sprintf(`COMPENSATION ANALYSIS

Some agents are unavailable. Analyse the topic on their behalf.

UNAVAILABLE AGENTS: %s

TOPIC: %q

Cover the topic from the point of view of each unavailable agent (400-600 words).`, strings.Join(failed, ", "), topic)
}

type agentResult struct {
	name      string
	reasoning string
	essence   string
}

func synthesisPrompt(topic string, results []agentResult, comments []models.UserComment) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("%s:\nANALYSIS: %s\nCONCLUSIONS: %s", r.name, r.reasoning, r.essence))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "TOPIC: %q\n\nAGENT RESULTS:\n%s\n", topic, strings.Join(parts, "\n\n---\n\n"))
	writeComments(&b, comments)
	b.WriteString(`
[FINAL SYNTHESIS]
Synthesize all results, name the key insights and state the conclusions.

[RECOMMENDATIONS]
Give practical recommendations based on the collective analysis.`)
	return b.String()
}

func evaluationPrompt(topic, synthesis string, round, maxRounds int) string {
	return fmt.Sprintf(`TOPIC: %q
ROUND: %d of at most %d

SYNTHESIS OF THIS ROUND:
%s

Decide whether the topic is explored well enough.

[DECISION] COMPLETE or CONTINUE
[NEXT ROUND] if CONTINUE, the refined topic for the next round in one sentence
[REASONING] why`, topic, round, maxRounds, synthesis)
}

type progress struct {
	topic        string
	phase        models.Phase
	round        int
	intermediate string
	lines        []string
	comments     []models.UserComment
}

func chaosPrompt(p progress) string {
	var b strings.Builder
	b.WriteString("CHAOTIC INTERVENTION IN THE COLLECTIVE MIND\n\n")
	fmt.Fprintf(&b, "TOPIC: %q\nPHASE: %s\nROUND: %d\n", p.topic, p.phase, p.round)
	if p.intermediate != "" {
		fmt.Fprintf(&b, "\nCOORDINATOR ANALYSIS:\n%s\n", parser.Truncate(p.intermediate, 2000))
	}
	if len(p.lines) > 0 {
		fmt.Fprintf(&b, "\nTHOUGHTS SO FAR:\n%s\n", strings.Join(p.lines, "\n\n"))
	}
	writeComments(&b, p.comments)
	b.WriteString(`
YOUR TASK AS THE TRICKSTER:
1. Find hidden contradictions and paradoxes in the analysis
2. Offer radically different perspectives
3. Question the core assumptions
4. Ask provocative questions and point at unexpected links

[DECONSTRUCTION]
Your chaotic analysis (300-500 words)

[ESSENCE]
The key chaotic insights (up to 150 words)`)
	return b.String()
}

func suggestionPrompt(topic, intermediate string, lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review the finished collective analysis and propose directions to continue it.\n\nTOPIC: %s\n\nRESULTS:\n%s\n", topic, strings.Join(lines, "\n\n"))
	if intermediate != "" {
		fmt.Fprintf(&b, "\nINTERMEDIATE OUTPUT:\n%s\n", intermediate)
	}
	b.WriteString(`
Propose concrete directions for deeper research (200-300 words):
1. Which aspects need more analysis?
2. Which new questions came up?
3. Which links deserve a closer look?
4. Give the exact wording for the next cycle as "Next cycle: <topic>"`)
	return b.String()
}

func writeComments(b *strings.Builder, comments []models.UserComment) {
	if len(comments) == 0 {
		return
	}
	b.WriteString("\nUSER COMMENTS:\n")
	for _, c := range comments {
		fmt.Fprintf(b, "- %s\n", c.Content)
	}
}

// thoughtLines renders one line per agent thought: its essence, or the
// start of its reasoning when the essence is empty.
func thoughtLines(thoughts []models.AgentThought, names func(string) string) []string {
	out := make([]string, 0, len(thoughts))
	for _, t := range thoughts {
		text := t.Essence
		if strings.TrimSpace(text) == "" {
			text = parser.Truncate(t.Reasoning, 200) + "..."
		}
		out = append(out, fmt.Sprintf("%s: %s", names(t.AgentRole), text))
	}
	return out
}
