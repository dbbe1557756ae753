// Package events fans orchestrator transitions out to subscribers: the SSE
// endpoint, the CLI and an optional Redis stream.
package events

import (
	"sync"
	"time"
)

type Type string

const (
	CycleStarted    Type = "cycle.started"
	PhaseChanged    Type = "phase.changed"
	AgentStarted    Type = "agent.started"
	ThoughtAdded    Type = "thought.added"
	AgentFailed     Type = "agent.failed"
	CommentAdded    Type = "comment.added"
	RoundStarted    Type = "round.started"
	CycleCompleted  Type = "cycle.completed"
	CycleStopped    Type = "cycle.stopped"
	CycleFailed     Type = "cycle.failed"
	CycleArchived   Type = "cycle.archived"
	Paused          Type = "paused"
	Resumed         Type = "resumed"
	SettingsChanged Type = "settings.changed"
)

// Event is one orchestrator transition.
type Event struct {
	Type        Type      `json:"type"`
	CycleID     string    `json:"cycle_id,omitempty"`
	Phase       string    `json:"phase,omitempty"`
	Round       int       `json:"round,omitempty"`
	TotalRounds int       `json:"total_rounds,omitempty"`
	Role        string    `json:"role,omitempty"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
}

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Emit(Event) {}

// Nop discards events.
var Nop Sink = nopSink{}

// Multi emits to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Broadcaster fans events out to in-process subscribers. Slow subscribers
// lose events instead of stalling the orchestrator.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *Broadcaster) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
