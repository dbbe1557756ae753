package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/config"
	"github.com/mohammad-safakhou/mindloop/internal/mindloop"
	"github.com/mohammad-safakhou/mindloop/models"
)

// Starter is the part of the orchestrator the scheduler drives.
type Starter interface {
	Start(ctx context.Context, topic string) (*models.Cycle, error)
	Snapshot() mindloop.State
}

// Scheduler starts cycles on cron cadences. A schedule that comes due while
// another cycle runs is skipped until the next tick.
type Scheduler struct {
	Orch      Starter
	Schedules []config.ScheduleConfig
	Logger    *zap.Logger
	Interval  time.Duration
	Now       func() time.Time

	mu   sync.Mutex
	last map[int]time.Time
}

func (s *Scheduler) Run(ctx context.Context) {
	if len(s.Schedules) == 0 {
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick starts at most one due schedule.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = make(map[int]time.Time)
	}
	now := s.now()
	logger := s.logger()
	for i, sc := range s.Schedules {
		var last *time.Time
		if t, ok := s.last[i]; ok {
			last = &t
		}
		if !isDue(sc.Cron, last, now) {
			continue
		}
		if s.Orch.Snapshot().Running {
			logger.Debug("schedule due while a cycle runs", zap.String("topic", sc.Topic))
			return
		}
		s.last[i] = now
		if _, err := s.Orch.Start(ctx, sc.Topic); err != nil {
			logger.Warn("scheduled cycle did not start", zap.String("topic", sc.Topic), zap.String("cron", sc.Cron), zap.Error(err))
			continue
		}
		logger.Info("scheduled cycle started", zap.String("topic", sc.Topic), zap.String("cron", sc.Cron))
		return
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// isDue reports whether cronSpec should fire at now given the last firing.
// Supports "@daily", "@hourly" and 5-field cron expressions; anything
// unparseable behaves like @daily.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	switch strings.TrimSpace(cronSpec) {
	case "@daily":
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		return now.Sub(*last) >= time.Hour
	}
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return now.Sub(*last) >= 24*time.Hour
	}
	return !expr.Next(*last).After(now)
}
