package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Model describes a selectable completion model.
type Model struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"name" yaml:"name"`
	Provider    string `json:"provider" yaml:"provider"`
	ContextSize string `json:"context" yaml:"context"`
	IsFree      bool   `json:"is_free,omitempty" yaml:"is_free,omitempty"`
	IsCustom    bool   `json:"is_custom,omitempty" yaml:"is_custom,omitempty"`
	Multimodal  bool   `json:"multimodal,omitempty" yaml:"multimodal,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

var (
	ErrDuplicateModel = errors.New("model id already exists")
	ErrInvalidModel   = errors.New("model id is required")
	ErrBuiltinModel   = errors.New("built-in models cannot be removed")
	ErrUnknownModel   = errors.New("unknown model")
	ErrUnknownPreset  = errors.New("unknown preset")
)

const freeSuffix = ":free"

// FallbackModels are tried in order when a free-tier model is reported missing.
var FallbackModels = []string{
	"meta-llama/llama-3.1-8b-instruct:free",
	"meta-llama/llama-3.2-3b-instruct:free",
	"meta-llama/llama-3.2-1b-instruct:free",
}

// IsFreeTier reports whether id names a free-tier model.
func IsFreeTier(id string) bool {
	return strings.HasSuffix(id, freeSuffix)
}

// Catalog is the set of built-in models plus user-registered custom models.
type Catalog struct {
	mu      sync.RWMutex
	builtin []Model
	index   map[string]int
	custom  []Model
}

// New returns a catalog seeded with the built-in models.
func New() *Catalog {
	c := &Catalog{builtin: builtinModels(), index: make(map[string]int)}
	for i, m := range c.builtin {
		c.index[m.ID] = i
	}
	return c
}

// Add registers a custom model. The id must be unique across built-in and
// custom entries.
func (c *Catalog) Add(m Model) error {
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		return ErrInvalidModel
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.existsLocked(m.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, m.ID)
	}
	if strings.TrimSpace(m.DisplayName) == "" {
		m.DisplayName = m.ID
	}
	if m.Provider == "" {
		m.Provider = "Custom"
	}
	m.IsCustom = true
	m.IsFree = m.IsFree || IsFreeTier(m.ID)
	c.custom = append(c.custom, m)
	return nil
}

// Remove deletes a custom model.
func (c *Catalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[id]; ok {
		return fmt.Errorf("%w: %s", ErrBuiltinModel, id)
	}
	for i, m := range c.custom {
		if m.ID == id {
			c.custom = append(c.custom[:i], c.custom[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownModel, id)
}

// SetCustom replaces the custom models, dropping entries that collide with a
// built-in id or repeat an earlier one.
func (c *Catalog) SetCustom(models []Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom = c.custom[:0]
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if m.ID == "" {
			continue
		}
		if _, ok := c.index[m.ID]; ok {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		m.IsCustom = true
		c.custom = append(c.custom, m)
	}
}

// Lookup finds a model by id.
func (c *Catalog) Lookup(id string) (Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.index[id]; ok {
		return c.builtin[i], true
	}
	for _, m := range c.custom {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// All returns built-in models followed by custom ones.
func (c *Catalog) All() []Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Model, 0, len(c.builtin)+len(c.custom))
	out = append(out, c.builtin...)
	return append(out, c.custom...)
}

func (c *Catalog) Free() []Model {
	return c.filter(func(m Model) bool { return !m.IsCustom && m.IsFree })
}

func (c *Catalog) Premium() []Model {
	return c.filter(func(m Model) bool { return !m.IsCustom && !m.IsFree })
}

func (c *Catalog) Custom() []Model {
	return c.filter(func(m Model) bool { return m.IsCustom })
}

// Groups buckets the catalog by provider, providers sorted by name.
func (c *Catalog) Groups() []Group {
	byProvider := map[string][]Model{}
	for _, m := range c.All() {
		byProvider[m.Provider] = append(byProvider[m.Provider], m)
	}
	groups := make([]Group, 0, len(byProvider))
	for p, models := range byProvider {
		groups = append(groups, Group{Provider: p, Models: models})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Provider < groups[j].Provider })
	return groups
}

// Group is a provider bucket of models.
type Group struct {
	Provider string  `json:"provider"`
	Models   []Model `json:"models"`
}

func (c *Catalog) filter(keep func(Model) bool) []Model {
	var out []Model
	for _, m := range c.All() {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (c *Catalog) existsLocked(id string) bool {
	if _, ok := c.index[id]; ok {
		return true
	}
	for _, m := range c.custom {
		if m.ID == id {
			return true
		}
	}
	return false
}
