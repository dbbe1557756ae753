package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrCycleNotFound is returned when an archived cycle id is unknown
var ErrCycleNotFound = errors.New("cycle not found")

type Phase string

const (
	PhaseAnalysis   Phase = "analysis"
	PhaseExecution  Phase = "execution"
	PhaseSynthesis  Phase = "synthesis"
	PhaseEvaluation Phase = "evaluation"
	PhaseWaiting    Phase = "waiting"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Cycle is one end-to-end run of the mindloop on a topic. A cycle may span
// several rounds; every round appends to the same thought stream.
type Cycle struct {
	ID                     string    `json:"id"`
	Number                 int       `json:"number"`
	Topic                  string    `json:"topic"`
	OriginalTopic          string    `json:"original_topic,omitempty"`
	Phase                  Phase     `json:"phase"`
	Status                 Status    `json:"status"`
	Thoughts               Stream    `json:"thoughts"`
	ActiveAgents           []string  `json:"active_agents"`
	CompletedAgents        []string  `json:"completed_agents"`
	FailedAgents           []string  `json:"failed_agents,omitempty"`
	RoundNumber            int       `json:"round_number"`
	TotalRounds            int       `json:"total_rounds"`
	IntermediateOutput     string    `json:"intermediate_output,omitempty"`
	ContinuationSuggestion string    `json:"continuation_suggestion,omitempty"`
	Synthesis              string    `json:"synthesis,omitempty"`
	FailureReason          string    `json:"failure_reason,omitempty"`
	IsComplete             bool      `json:"is_complete"`
	StartTime              time.Time `json:"start_time"`
	EndTime                time.Time `json:"end_time,omitempty"`
}

// NewCycle returns a cycle in the analysis phase of round 1 of 1.
func NewCycle(id string, number int, topic string, now time.Time) *Cycle {
	return &Cycle{
		ID:            id,
		Number:        number,
		Topic:         topic,
		OriginalTopic: topic,
		Phase:         PhaseAnalysis,
		Status:        StatusRunning,
		RoundNumber:   1,
		TotalRounds:   1,
		StartTime:     now,
	}
}

// Append adds an item to the end of the thought stream.
func (c *Cycle) Append(item Item) {
	c.Thoughts = append(c.Thoughts, item)
}

// NextRound moves the cycle to the analysis phase of the following round.
// TotalRounds never decreases and always covers RoundNumber.
func (c *Cycle) NextRound(topic string) {
	c.RoundNumber++
	if c.TotalRounds < c.RoundNumber {
		c.TotalRounds = c.RoundNumber
	}
	if topic != "" {
		c.Topic = topic
	}
	c.Phase = PhaseAnalysis
	c.Status = StatusRunning
	c.IsComplete = false
	c.EndTime = time.Time{}
	c.ActiveAgents = nil
	c.CompletedAgents = nil
	c.FailedAgents = nil
	c.IntermediateOutput = ""
}

// Validate checks the round counters.
func (c *Cycle) Validate() error {
	if c.RoundNumber < 1 {
		return fmt.Errorf("cycle %s: round number %d < 1", c.ID, c.RoundNumber)
	}
	if c.RoundNumber > c.TotalRounds {
		return fmt.Errorf("cycle %s: round %d exceeds total %d", c.ID, c.RoundNumber, c.TotalRounds)
	}
	return nil
}

// RoundThoughts returns the agent thoughts of the given round in stream order.
func (c *Cycle) RoundThoughts(round int) []AgentThought {
	var out []AgentThought
	for _, t := range c.Thoughts.Thoughts() {
		if t.RoundNumber == round {
			out = append(out, t)
		}
	}
	return out
}

// PendingComments returns the comments added since the synthesis of the
// previous round, in stream order. Comments left while a round waits steer
// the next one.
func (c *Cycle) PendingComments() []UserComment {
	var out []UserComment
	for _, it := range c.Thoughts {
		switch v := it.(type) {
		case AgentThought:
			if v.Kind == KindSynthesis && v.RoundNumber < c.RoundNumber {
				out = nil
			}
		case UserComment:
			out = append(out, v)
		}
	}
	return out
}

// LatestEssence returns the essence of the most recent thought by role.
func (c *Cycle) LatestEssence(role string) (string, bool) {
	thoughts := c.Thoughts.Thoughts()
	for i := len(thoughts) - 1; i >= 0; i-- {
		if thoughts[i].AgentRole == role {
			return thoughts[i].Essence, true
		}
	}
	return "", false
}

// Clone returns a deep copy.
func (c *Cycle) Clone() *Cycle {
	if c == nil {
		return nil
	}
	out := *c
	out.Thoughts = c.Thoughts.Clone()
	out.ActiveAgents = cloneStrings(c.ActiveAgents)
	out.CompletedAgents = cloneStrings(c.CompletedAgents)
	out.FailedAgents = cloneStrings(c.FailedAgents)
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
