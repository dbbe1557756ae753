package mindloop

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/archive"
	"github.com/mohammad-safakhou/mindloop/internal/catalog"
	"github.com/mohammad-safakhou/mindloop/internal/events"
	"github.com/mohammad-safakhou/mindloop/models"
)

// Every setter below persists the full state before returning.

func (o *Orchestrator) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return configErr(ErrMissingAPIKey)
	}
	o.mu.Lock()
	o.apiKey = key
	o.emitLocked(events.SettingsChanged, "", "api_key")
	o.mu.Unlock()
	return o.commit(ctx)
}

func (o *Orchestrator) SetAutoAdvance(ctx context.Context, on bool) error {
	o.mu.Lock()
	o.autoAdvance = on
	o.emitLocked(events.SettingsChanged, "", fmt.Sprintf("auto_advance=%t", on))
	o.mu.Unlock()
	return o.commit(ctx)
}

// SetInterAgentDelay changes the pause between agents. Values are clamped to
// [0, 60s].
func (o *Orchestrator) SetInterAgentDelay(ctx context.Context, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	if d > time.Minute {
		d = time.Minute
	}
	o.mu.Lock()
	o.interAgentDelay = d
	o.applyDelayLocked()
	o.emitLocked(events.SettingsChanged, "", fmt.Sprintf("inter_agent_delay=%s", d))
	o.mu.Unlock()
	return o.commit(ctx)
}

// applyDelayLocked pushes the delay into pacers that support it.
func (o *Orchestrator) applyDelayLocked() {
	if p, ok := o.pacer.(interface{ SetInterAgentDelay(time.Duration) }); ok {
		p.SetInterAgentDelay(o.interAgentDelay)
	}
}

func (o *Orchestrator) SetAgentActive(ctx context.Context, role string, active bool) error {
	if err := o.registry.SetActive(role, active); err != nil {
		return configErr(err)
	}
	o.settingsChanged("agent", role)
	return o.commit(ctx)
}

// SetAgentModel assigns a catalog model to an agent.
func (o *Orchestrator) SetAgentModel(ctx context.Context, role, modelID string) error {
	modelID = strings.TrimSpace(modelID)
	if _, ok := o.catalog.Lookup(modelID); !ok {
		return configErr(fmt.Errorf("%w: %s", catalog.ErrUnknownModel, modelID))
	}
	if err := o.registry.SetModel(role, modelID); err != nil {
		return configErr(err)
	}
	o.settingsChanged("model", role)
	return o.commit(ctx)
}

func (o *Orchestrator) SetAgentPrompt(ctx context.Context, role, prompt string) error {
	if err := o.registry.SetPrompt(role, prompt); err != nil {
		return configErr(err)
	}
	o.settingsChanged("prompt", role)
	return o.commit(ctx)
}

// ApplyPreset assigns the preset's models and returns the roles it changed.
func (o *Orchestrator) ApplyPreset(ctx context.Context, id string) ([]string, error) {
	p, err := catalog.LookupPreset(id)
	if err != nil {
		return nil, configErr(err)
	}
	changed := o.registry.ApplyPreset(p.Models)
	o.logger.Info("preset applied", zap.String("preset", p.ID), zap.Strings("roles", changed))
	o.settingsChanged("preset", "")
	return changed, o.commit(ctx)
}

func (o *Orchestrator) AddCustomModel(ctx context.Context, m catalog.Model) error {
	if err := o.catalog.Add(m); err != nil {
		return configErr(err)
	}
	o.settingsChanged("custom_model", "")
	return o.commit(ctx)
}

func (o *Orchestrator) RemoveCustomModel(ctx context.Context, id string) error {
	if err := o.catalog.Remove(id); err != nil {
		return configErr(err)
	}
	o.settingsChanged("custom_model", "")
	return o.commit(ctx)
}

// AddCustomAgent registers a new worker. Its model must be in the catalog.
func (o *Orchestrator) AddCustomAgent(ctx context.Context, c agents.Config) error {
	if _, ok := o.catalog.Lookup(strings.TrimSpace(c.ModelID)); !ok {
		return configErr(fmt.Errorf("%w: %s", catalog.ErrUnknownModel, c.ModelID))
	}
	c.ModelID = strings.TrimSpace(c.ModelID)
	if err := o.registry.AddCustom(c); err != nil {
		return configErr(err)
	}
	o.settingsChanged("agent", c.Role)
	return o.commit(ctx)
}

func (o *Orchestrator) RemoveCustomAgent(ctx context.Context, role string) error {
	if err := o.registry.RemoveCustom(role); err != nil {
		return configErr(err)
	}
	o.settingsChanged("agent", role)
	return o.commit(ctx)
}

// ResetAgents restores the built-in personas and drops custom agents.
func (o *Orchestrator) ResetAgents(ctx context.Context) error {
	o.registry.Reset()
	o.settingsChanged("agents", "")
	return o.commit(ctx)
}

// ImportAgents replaces agent configs from a YAML document and persists them.
func (o *Orchestrator) ImportAgents(ctx context.Context, r io.Reader) error {
	if err := o.registry.ImportYAML(r); err != nil {
		return configErr(err)
	}
	o.settingsChanged("agents", "")
	return o.commit(ctx)
}

func (o *Orchestrator) ExportAgents(w io.Writer) error { return o.registry.ExportYAML(w) }

// Agents lists every registered agent.
func (o *Orchestrator) Agents() []agents.Config { return o.registry.List() }

// Catalog exposes the model catalog for read access.
func (o *Orchestrator) Catalog() *catalog.Catalog { return o.catalog }

// Search queries the archived cycles.
func (o *Orchestrator) Search(query string, limit int) ([]archive.Hit, error) {
	return o.archive.Search(query, limit)
}

// Cycle returns an archived cycle by id.
func (o *Orchestrator) Cycle(id string) (*models.Cycle, error) {
	return o.archive.Get(id)
}

func (o *Orchestrator) settingsChanged(what, role string) {
	o.mu.Lock()
	o.emitLocked(events.SettingsChanged, role, what)
	o.mu.Unlock()
}
