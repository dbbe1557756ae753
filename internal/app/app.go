// Package app builds the orchestrator and its dependencies from config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/config"
	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/archive"
	"github.com/mohammad-safakhou/mindloop/internal/catalog"
	"github.com/mohammad-safakhou/mindloop/internal/events"
	"github.com/mohammad-safakhou/mindloop/internal/mindloop"
	"github.com/mohammad-safakhou/mindloop/internal/parser"
	"github.com/mohammad-safakhou/mindloop/internal/store"
	"github.com/mohammad-safakhou/mindloop/internal/telemetry"
	"github.com/mohammad-safakhou/mindloop/provider/openrouter"
)

// App owns every long-lived dependency of a mindloop process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Orch     *mindloop.Orchestrator
	Bus      *events.Broadcaster
	Metrics  *telemetry.Metrics
	Registry *agents.Registry
	Catalog  *catalog.Catalog
	Archive  *archive.Archive
	Store    *store.BlobStore

	rdb    *redis.Client
	stream *events.StreamSink
}

// New wires the orchestrator and loads the persisted state. extra sinks
// receive every event next to the broadcaster.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, extra ...events.Sink) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Bus:      events.NewBroadcaster(),
		Metrics:  telemetry.New(),
		Registry: agents.NewRegistry(),
		Catalog:  catalog.New(),
	}
	var err error
	if a.Archive, err = archive.New(); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if a.Store, err = store.Open(ctx, cfg.Storage); err != nil {
		a.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	sinks := append([]events.Sink{a.Bus}, extra...)
	if cfg.Events.RedisStream != "" {
		r := cfg.Storage.Redis
		if a.rdb, err = store.Conn(ctx, r.Addr(), r.Password, r.DB, r.Timeout); err != nil {
			a.Close()
			return nil, fmt.Errorf("events stream: %w", err)
		}
		pub := events.NewPublisher(a.rdb, cfg.Events.RedisStream, cfg.Events.StreamMaxLen)
		a.stream = events.NewStreamSink(pub, logger.Named("events"), 256)
		sinks = append(sinks, a.stream)
	}

	client := openrouter.New(openrouter.Options{
		BaseURL:   cfg.LLM.BaseURL,
		Referer:   cfg.LLM.Referer,
		Title:     cfg.LLM.Title,
		Timeout:   cfg.LLM.Timeout,
		Fallbacks: catalog.FallbackModels,
		Logger:    logger.Named("completion"),
		Metrics:   a.Metrics,
	})

	var tasks parser.TaskExtractor = parser.SectionExtractor{}
	if cfg.Cycle.StructuredTasks {
		tasks = parser.StructuredExtractor{}
	}

	a.Orch, err = mindloop.New(mindloop.Options{
		Completer:         client,
		Registry:          a.Registry,
		Catalog:           a.Catalog,
		Archive:           a.Archive,
		Store:             a.Store,
		Pacer:             mindloop.NewPacer(cfg.Pacing),
		Tasks:             tasks,
		Events:            events.Multi(sinks...),
		Metrics:           a.Metrics,
		Logger:            logger.Named("orchestrator"),
		Cycle:             cfg.Cycle,
		AgentPolicy:       openrouter.Policy{MaxAttempts: cfg.LLM.Agent.MaxAttempts, BaseDelay: cfg.LLM.Agent.BaseDelay},
		CoordinatorPolicy: openrouter.Policy{MaxAttempts: cfg.LLM.Coordinator.MaxAttempts, BaseDelay: cfg.LLM.Coordinator.BaseDelay},
		APIKey:            cfg.LLM.APIKey,
		InterAgentDelay:   cfg.Pacing.InterAgentDelay,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.Orch.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close stops the orchestrator and releases every connection.
func (a *App) Close() {
	if a.Orch != nil {
		a.Orch.Close()
	}
	if a.stream != nil {
		a.stream.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn("close store", zap.Error(err))
		}
	}
	if a.Archive != nil {
		_ = a.Archive.Close()
	}
	a.Bus.Close()
}
