package catalog

import "fmt"

// Preset assigns a model to every default role in one step.
type Preset struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Models      map[string]string `json:"models"`
}

func uniform(model, trickster string) map[string]string {
	return map[string]string{
		"observer":    model,
		"geometer":    model,
		"physicist":   model,
		"perceptive":  model,
		"philosopher": model,
		"integrator":  model,
		"trickster":   trickster,
	}
}

var presets = []Preset{
	{
		ID:          "free",
		Name:        "Stable free",
		Description: "Only free models known to answer reliably",
		Models:      uniform("meta-llama/llama-3.1-8b-instruct:free", "meta-llama/llama-3.2-1b-instruct:free"),
	},
	{
		ID:          "free-alt",
		Name:        "Alternative free",
		Description: "Backup free models",
		Models:      uniform("meta-llama/llama-3.2-3b-instruct:free", "meta-llama/llama-3.2-1b-instruct:free"),
	},
	{
		ID:          "recommended",
		Name:        "Recommended",
		Description: "Balance of quality and cost",
		Models: map[string]string{
			"observer":    "anthropic/claude-3.5-sonnet",
			"geometer":    "openai/gpt-4o",
			"physicist":   "openai/gpt-4o",
			"perceptive":  "google/gemini-pro-1.5",
			"philosopher": "anthropic/claude-3.5-sonnet",
			"integrator":  "openai/gpt-4o",
			"trickster":   "anthropic/claude-3.5-haiku",
		},
	},
	{
		ID:          "premium",
		Name:        "Premium",
		Description: "Top models for maximum quality",
		Models: map[string]string{
			"observer":    "anthropic/claude-3-opus",
			"geometer":    "openai/gpt-4o",
			"physicist":   "openai/gpt-4o",
			"perceptive":  "google/gemini-pro-1.5",
			"philosopher": "anthropic/claude-3-opus",
			"integrator":  "openai/gpt-4o",
			"trickster":   "anthropic/claude-3.5-sonnet",
		},
	},
}

// Presets returns copies of the built-in presets in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		out[i] = p.clone()
	}
	return out
}

// LookupPreset returns a copy of the preset with the given id.
func LookupPreset(id string) (Preset, error) {
	for _, p := range presets {
		if p.ID == id {
			return p.clone(), nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, id)
}

func (p Preset) clone() Preset {
	models := make(map[string]string, len(p.Models))
	for k, v := range p.Models {
		models[k] = v
	}
	p.Models = models
	return p
}
