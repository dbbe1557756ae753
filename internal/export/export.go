// Package export renders archived cycles as Markdown or HTML.
package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mohammad-safakhou/mindloop/models"
)

type Format string

const (
	Markdown Format = "md"
	HTML     Format = "html"
)

// ParseFormat accepts "md", "markdown" and "html". Empty means Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return Markdown, nil
	case "html":
		return HTML, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) ContentType() string {
	if f == HTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Namer resolves an agent role to its display name.
type Namer func(role string) string

// Write renders cycles in format f. Names default to the raw role.
func Write(w io.Writer, f Format, cycles []*models.Cycle, names Namer) error {
	if names == nil {
		names = func(role string) string { return role }
	}
	views := make([]cycleView, len(cycles))
	for i, c := range cycles {
		views[i] = newCycleView(c, names)
	}
	switch f {
	case HTML:
		return writeHTML(w, views)
	default:
		return writeMarkdown(w, views)
	}
}

type entryView struct {
	At      string
	Who     string
	Kind    string
	Round   int
	Essence string
	Body    string
	Comment bool
}

type cycleView struct {
	Number    int
	Topic     string
	Original  string
	Status    string
	Rounds    int
	Started   string
	Ended     string
	Synthesis string
	Failure   string
	Entries   []entryView
}

func newCycleView(c *models.Cycle, names Namer) cycleView {
	v := cycleView{
		Number:    c.Number,
		Topic:     c.Topic,
		Status:    string(c.Status),
		Rounds:    c.TotalRounds,
		Started:   stamp(c.StartTime),
		Ended:     stamp(c.EndTime),
		Synthesis: c.Synthesis,
		Failure:   c.FailureReason,
	}
	if c.OriginalTopic != "" && c.OriginalTopic != c.Topic {
		v.Original = c.OriginalTopic
	}
	for _, it := range c.Thoughts.SortedByTime() {
		switch e := it.(type) {
		case models.AgentThought:
			v.Entries = append(v.Entries, entryView{
				At:      stamp(e.Timestamp),
				Who:     names(e.AgentRole),
				Kind:    string(e.Kind),
				Round:   e.RoundNumber,
				Essence: e.Essence,
				Body:    e.Reasoning,
			})
		case models.UserComment:
			v.Entries = append(v.Entries, entryView{
				At:      stamp(e.Timestamp),
				Who:     "User",
				Round:   e.RoundNumber,
				Body:    e.Content,
				Comment: true,
			})
		}
	}
	return v
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeMarkdown(w io.Writer, cycles []cycleView) error {
	var b strings.Builder
	for i, c := range cycles {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "# Cycle %d: %s\n\n", c.Number, c.Topic)
		if c.Original != "" {
			fmt.Fprintf(&b, "Original topic: %s\n\n", c.Original)
		}
		fmt.Fprintf(&b, "- Status: %s\n- Rounds: %d\n- Started: %s\n", c.Status, c.Rounds, c.Started)
		if c.Ended != "" {
			fmt.Fprintf(&b, "- Ended: %s\n", c.Ended)
		}
		if c.Failure != "" {
			fmt.Fprintf(&b, "- Failure: %s\n", c.Failure)
		}
		b.WriteString("\n## Thoughts\n")
		for _, e := range c.Entries {
			if e.Comment {
				fmt.Fprintf(&b, "\n> **User** (round %d, %s): %s\n", e.Round, e.At, e.Body)
				continue
			}
			fmt.Fprintf(&b, "\n### %s · %s (round %d)\n\n_%s_\n\n%s\n", e.Who, e.Kind, e.Round, e.At, e.Essence)
		}
		if c.Synthesis != "" {
			fmt.Fprintf(&b, "\n## Synthesis\n\n%s\n", c.Synthesis)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var bodyTemplate = template.Must(template.New("cycles").Parse(`{{range .}}<article class="cycle">
<h1>Cycle {{.Number}}: {{.Topic}}</h1>
{{if .Original}}<p>Original topic: {{.Original}}</p>
{{end}}<ul>
<li>Status: {{.Status}}</li>
<li>Rounds: {{.Rounds}}</li>
<li>Started: {{.Started}}</li>
{{if .Ended}}<li>Ended: {{.Ended}}</li>
{{end}}{{if .Failure}}<li>Failure: {{.Failure}}</li>
{{end}}</ul>
<h2>Thoughts</h2>
{{range .Entries}}{{if .Comment}}<blockquote><strong>User</strong> (round {{.Round}}, {{.At}}): {{.Body}}</blockquote>
{{else}}<section>
<h3>{{.Who}} · {{.Kind}} (round {{.Round}})</h3>
<p><em>{{.At}}</em></p>
<p>{{.Essence}}</p>
<details><summary>Reasoning</summary><pre>{{.Body}}</pre></details>
</section>
{{end}}{{end}}{{if .Synthesis}}<h2>Synthesis</h2>
<pre>{{.Synthesis}}</pre>
{{end}}</article>
{{end}}`))

const page = `<!doctype html>
<html><head><meta charset="utf-8"><title>mindloop export</title>
<style>body{font-family:sans-serif;max-width:60rem;margin:auto}pre{white-space:pre-wrap}</style>
</head><body>
%s</body></html>
`

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// bodyPolicy is a UGC policy that also keeps the collapsible reasoning blocks.
func bodyPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("article", "section", "details", "summary")
		p.AllowAttrs("class").OnElements("article")
		policy = p
	})
	return policy
}

func writeHTML(w io.Writer, cycles []cycleView) error {
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, cycles); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := fmt.Fprintf(w, page, bodyPolicy().SanitizeBytes(body.Bytes()))
	return err
}
