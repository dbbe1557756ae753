package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Verdict is the coordinator's completeness decision after a round.
type Verdict struct {
	Continue     bool
	RefinedTopic string
}

var (
	decisionSection  = regexp.MustCompile(`(?is)\[DECISION\]\s*(CONTINUE|COMPLETE)`)
	nextRoundSection = regexp.MustCompile(`(?is)\[NEXT ROUND\](.*?)(?:\[|\z)`)
)

// ParseVerdict reads "[DECISION] CONTINUE|COMPLETE" and an optional
// "[NEXT ROUND]" refined topic. Missing or unreadable decisions mean complete.
func ParseVerdict(text string) Verdict {
	m := decisionSection.FindStringSubmatch(text)
	if m == nil || !strings.EqualFold(m[1], "CONTINUE") {
		return Verdict{}
	}
	v := Verdict{Continue: true}
	if n := nextRoundSection.FindStringSubmatch(text); n != nil {
		v.RefinedTopic = strings.TrimSpace(n[1])
	}
	return v
}

var continuationTopic = regexp.MustCompile(`(?i)(?:new cycle|next cycle|study|analysis|research)[^:\n-]*[:-]\s*["«]?([^"«»\n]+)["»]?`)

// ContinuationTopic picks the topic for a follow-up cycle out of a
// continuation suggestion. Short or missing topics fall back to an in-depth
// study of previous.
func ContinuationTopic(suggestion, previous string) string {
	topic := ""
	if m := continuationTopic.FindStringSubmatch(suggestion); m != nil {
		topic = strings.TrimSpace(m[1])
	} else {
		topic = strings.TrimSpace(strings.SplitN(suggestion, "\n", 2)[0])
	}
	if utf8.RuneCountInString(topic) < 10 {
		if previous == "" {
			previous = "continued analysis"
		}
		return "In-depth study: " + previous
	}
	return topic
}
