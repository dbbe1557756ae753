package agents

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Config is one persona the orchestrator can call.
type Config struct {
	Role              string `json:"role" yaml:"role"`
	Name              string `json:"name" yaml:"name"`
	Description       string `json:"description" yaml:"description"`
	Color             string `json:"color,omitempty" yaml:"color,omitempty"`
	PromptTemplate    string `json:"prompt_template" yaml:"prompt_template"`
	ModelID           string `json:"model" yaml:"model"`
	IsActive          bool   `json:"is_active" yaml:"is_active"`
	IsProtected       bool   `json:"is_protected,omitempty" yaml:"is_protected,omitempty"`
	LinkedPredecessor string `json:"receives_from,omitempty" yaml:"receives_from,omitempty"`
	LinkedSuccessor   string `json:"sends_to,omitempty" yaml:"sends_to,omitempty"`
}

// IsWorker reports whether the agent takes part in the execution phase.
func (c Config) IsWorker() bool {
	return c.Role != Coordinator && c.Role != Chaos
}

var (
	ErrUnknownAgent   = errors.New("unknown agent")
	ErrDuplicateAgent = errors.New("agent role already exists")
	ErrProtectedAgent = errors.New("built-in agents cannot be removed")
	ErrInvalidAgent   = errors.New("invalid agent")
)

// Registry holds agent configurations keyed by role.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Config
}

// NewRegistry returns a registry holding the default personas.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset restores the default personas and drops custom agents.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]Config, len(DefaultRoles))
	for _, c := range Defaults() {
		r.agents[c.Role] = c
	}
}

func (r *Registry) Get(role string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.agents[role]
	return c, ok
}

// List returns the default personas in display order followed by custom
// agents sorted by role.
func (r *Registry) List() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []Config {
	out := make([]Config, 0, len(r.agents))
	for _, role := range DefaultRoles {
		if c, ok := r.agents[role]; ok {
			out = append(out, c)
		}
	}
	var custom []Config
	for role, c := range r.agents {
		if !isDefaultRole(role) {
			custom = append(custom, c)
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Role < custom[j].Role })
	return append(out, custom...)
}

// ActiveWorkers returns the active agents that run in the execution phase, in
// List order.
func (r *Registry) ActiveWorkers() []Config {
	var out []Config
	for _, c := range r.List() {
		if c.IsActive && c.IsWorker() {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) SetActive(role string, active bool) error {
	return r.update(role, func(c *Config) error {
		if c.Role == Chaos && active {
			return fmt.Errorf("%w: %s only runs on demand", ErrInvalidAgent, Chaos)
		}
		c.IsActive = active
		return nil
	})
}

func (r *Registry) SetModel(role, modelID string) error {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidAgent)
	}
	return r.update(role, func(c *Config) error {
		c.ModelID = modelID
		return nil
	})
}

func (r *Registry) SetPrompt(role, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidAgent)
	}
	return r.update(role, func(c *Config) error {
		c.PromptTemplate = prompt
		return nil
	})
}

// ApplyPreset overwrites the model of every registered role the mapping names.
// Roles absent from the registry are ignored. It returns the roles changed.
func (r *Registry) ApplyPreset(models map[string]string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed []string
	for _, c := range r.listLocked() {
		m, ok := models[c.Role]
		if !ok || m == "" {
			continue
		}
		c.ModelID = m
		r.agents[c.Role] = c
		changed = append(changed, c.Role)
	}
	return changed
}

var roleRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// AddCustom registers a user-defined worker linked to the coordinator.
func (r *Registry) AddCustom(c Config) error {
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	if c.Role == "" || strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: role and name are required", ErrInvalidAgent)
	}
	if !roleRe.MatchString(c.Role) {
		return fmt.Errorf("%w: role %q may only use letters, digits, '-' and '_'", ErrInvalidAgent, c.Role)
	}
	if strings.TrimSpace(c.PromptTemplate) == "" || strings.TrimSpace(c.ModelID) == "" {
		return fmt.Errorf("%w: prompt and model are required", ErrInvalidAgent)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[c.Role]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, c.Role)
	}
	c.IsProtected = false
	c.IsActive = true
	c.LinkedPredecessor = Coordinator
	c.LinkedSuccessor = Coordinator
	if c.Color == "" {
		c.Color = "#8b5cf6"
	}
	r.agents[c.Role] = c
	return nil
}

func (r *Registry) RemoveCustom(role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.agents[role]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, role)
	}
	if c.IsProtected || isDefaultRole(role) {
		return fmt.Errorf("%w: %s", ErrProtectedAgent, role)
	}
	delete(r.agents, role)
	return nil
}

// Snapshot returns every agent in List order for persistence.
func (r *Registry) Snapshot() []Config {
	return r.List()
}

// Restore loads persisted agents. Missing default personas are re-added, the
// chaos persona is forced inactive and retired free models are replaced.
func (r *Registry) Restore(saved []Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]Config, len(saved)+len(DefaultRoles))
	for _, c := range Defaults() {
		r.agents[c.Role] = c
	}
	for _, c := range saved {
		if c.Role == "" {
			continue
		}
		if isDefaultRole(c.Role) {
			c.IsProtected = true
		}
		if isRetired(c.ModelID) {
			c.ModelID = defaultWorkerModel
			if c.Role == Chaos {
				c.ModelID = defaultChaosModel
			}
		}
		r.agents[c.Role] = c
	}
	chaos := r.agents[Chaos]
	chaos.IsActive = false
	r.agents[Chaos] = chaos
}

func (r *Registry) update(role string, fn func(*Config) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.agents[role]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, role)
	}
	if err := fn(&c); err != nil {
		return err
	}
	r.agents[role] = c
	return nil
}

func isDefaultRole(role string) bool {
	for _, d := range DefaultRoles {
		if d == role {
			return true
		}
	}
	return false
}

func isRetired(model string) bool {
	for _, marker := range retiredModelMarkers {
		if strings.Contains(model, marker) {
			return true
		}
	}
	return false
}
