package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/mindloop/config"
	"github.com/mohammad-safakhou/mindloop/internal/mindloop"
	"github.com/mohammad-safakhou/mindloop/models"
)

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time { ts := now.Add(-d); return &ts }

	cases := []struct {
		name string
		spec string
		last *time.Time
		want bool
	}{
		{"never ran", "@daily", nil, true},
		{"daily not yet", "@daily", ago(23 * time.Hour), false},
		{"daily due", "@daily", ago(24 * time.Hour), true},
		{"hourly due", "@hourly", ago(61 * time.Minute), true},
		{"hourly not yet", "@hourly", ago(30 * time.Minute), false},
		{"cron due", "*/15 * * * *", ago(16 * time.Minute), true},
		{"cron not yet", "0 0 * * *", ago(time.Hour), false},
		{"invalid acts daily", "whenever", ago(2 * time.Hour), false},
	}
	for _, tc := range cases {
		if got := isDue(tc.spec, tc.last, now); got != tc.want {
			t.Fatalf("%s: isDue(%q) = %v, want %v", tc.name, tc.spec, got, tc.want)
		}
	}
}

type fakeStarter struct {
	running bool
	topics  []string
	err     error
}

func (f *fakeStarter) Start(_ context.Context, topic string) (*models.Cycle, error) {
	f.topics = append(f.topics, topic)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Cycle{Topic: topic}, nil
}

func (f *fakeStarter) Snapshot() mindloop.State { return mindloop.State{Running: f.running} }

func TestSchedulerTick(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	orch := &fakeStarter{}
	s := &Scheduler{
		Orch: orch,
		Schedules: []config.ScheduleConfig{
			{Topic: "morning digest", Cron: "@daily"},
			{Topic: "hourly pulse", Cron: "@hourly"},
		},
		Now: func() time.Time { return now },
	}

	s.Tick(context.Background())
	if len(orch.topics) != 1 || orch.topics[0] != "morning digest" {
		t.Fatalf("first tick started %v", orch.topics)
	}

	// One start per tick; the hourly one goes next.
	s.Tick(context.Background())
	if len(orch.topics) != 2 || orch.topics[1] != "hourly pulse" {
		t.Fatalf("second tick started %v", orch.topics)
	}

	now = now.Add(2 * time.Hour)
	orch.running = true
	s.Tick(context.Background())
	if len(orch.topics) != 2 {
		t.Fatalf("started while a cycle was running: %v", orch.topics)
	}

	orch.running = false
	s.Tick(context.Background())
	if len(orch.topics) != 3 || orch.topics[2] != "hourly pulse" {
		t.Fatalf("expected hourly pulse after it came due, got %v", orch.topics)
	}
}

func TestSchedulerTriesNextScheduleOnStartError(t *testing.T) {
	orch := &fakeStarter{err: errors.New("no api key")}
	s := &Scheduler{
		Orch:      orch,
		Schedules: []config.ScheduleConfig{{Topic: "a", Cron: "@daily"}, {Topic: "b", Cron: "@daily"}},
	}
	s.Tick(context.Background())
	if len(orch.topics) != 2 {
		t.Fatalf("expected both schedules attempted, got %v", orch.topics)
	}
}
