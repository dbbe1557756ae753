package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ThoughtKind records which step produced a thought.
type ThoughtKind string

const (
	KindAnalysis     ThoughtKind = "analysis"
	KindExecution    ThoughtKind = "execution"
	KindCompensation ThoughtKind = "compensation"
	KindSynthesis    ThoughtKind = "synthesis"
	KindEvaluation   ThoughtKind = "evaluation"
	KindChaos        ThoughtKind = "chaos"
)

// Item is an entry of the thought stream: either an AgentThought or a
// UserComment. The set is closed.
type Item interface {
	ItemID() string
	At() time.Time
	isItem()
}

// AgentThought is a parsed model answer. Immutable once appended.
type AgentThought struct {
	ID              string      `json:"id"`
	AgentRole       string      `json:"agent_role"`
	Reasoning       string      `json:"reasoning"`
	Essence         string      `json:"essence"`
	ReceivedContext string      `json:"received_context,omitempty"`
	Timestamp       time.Time   `json:"timestamp"`
	CycleNumber     int         `json:"cycle_number"`
	RoundNumber     int         `json:"round_number"`
	Kind            ThoughtKind `json:"kind"`
	Confidence      float64     `json:"confidence"`
	ModelUsed       string      `json:"model_used,omitempty"`
}

func (t AgentThought) ItemID() string { return t.ID }
func (t AgentThought) At() time.Time  { return t.Timestamp }
func (AgentThought) isItem()          {}

// UserComment is free text a user interjected into a running cycle.
type UserComment struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	CycleNumber int       `json:"cycle_number"`
	RoundNumber int       `json:"round_number"`
}

func (c UserComment) ItemID() string { return c.ID }
func (c UserComment) At() time.Time  { return c.Timestamp }
func (UserComment) isItem()          {}

// Stream is the append-only sequence of thoughts and comments of a cycle.
type Stream []Item

// Thoughts returns the agent thoughts in insertion order.
func (s Stream) Thoughts() []AgentThought {
	var out []AgentThought
	for _, it := range s {
		if t, ok := it.(AgentThought); ok {
			out = append(out, t)
		}
	}
	return out
}

// Comments returns the user comments in insertion order.
func (s Stream) Comments() []UserComment {
	var out []UserComment
	for _, it := range s {
		if c, ok := it.(UserComment); ok {
			out = append(out, c)
		}
	}
	return out
}

// SortedByTime returns a copy ordered by timestamp. Equal timestamps keep
// insertion order. The receiver is not modified.
func (s Stream) SortedByTime() Stream {
	out := s.Clone()
	sort.SliceStable(out, func(i, j int) bool { return out[i].At().Before(out[j].At()) })
	return out
}

// Clone copies the stream. Items are values, so the copy is deep.
func (s Stream) Clone() Stream {
	if s == nil {
		return nil
	}
	out := make(Stream, len(s))
	copy(out, s)
	return out
}

type streamEntry struct {
	Kind    string        `json:"kind"`
	Thought *AgentThought `json:"thought,omitempty"`
	Comment *UserComment  `json:"comment,omitempty"`
}

const (
	entryThought = "thought"
	entryComment = "comment"
)

func (s Stream) MarshalJSON() ([]byte, error) {
	entries := make([]streamEntry, 0, len(s))
	for _, it := range s {
		switch v := it.(type) {
		case AgentThought:
			entries = append(entries, streamEntry{Kind: entryThought, Thought: &v})
		case UserComment:
			entries = append(entries, streamEntry{Kind: entryComment, Comment: &v})
		default:
			return nil, fmt.Errorf("unknown stream item %T", it)
		}
	}
	return json.Marshal(entries)
}

func (s *Stream) UnmarshalJSON(data []byte) error {
	var entries []streamEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(Stream, 0, len(entries))
	for i, e := range entries {
		switch {
		case e.Kind == entryThought && e.Thought != nil:
			out = append(out, *e.Thought)
		case e.Kind == entryComment && e.Comment != nil:
			out = append(out, *e.Comment)
		default:
			return fmt.Errorf("stream entry %d: unknown kind %q", i, e.Kind)
		}
	}
	*s = out
	return nil
}
