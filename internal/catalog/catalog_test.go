package catalog

import (
	"errors"
	"testing"
)

func TestAddRejectsDuplicateIDs(t *testing.T) {
	c := New()
	if err := c.Add(Model{ID: "openai/gpt-4o"}); !errors.Is(err, ErrDuplicateModel) {
		t.Fatalf("expected duplicate error for built-in id, got %v", err)
	}
	if err := c.Add(Model{ID: "acme/thinker-1"}); err != nil {
		t.Fatalf("add custom: %v", err)
	}
	if err := c.Add(Model{ID: " acme/thinker-1 "}); !errors.Is(err, ErrDuplicateModel) {
		t.Fatalf("expected duplicate error for custom id, got %v", err)
	}
	if err := c.Add(Model{ID: "  "}); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected invalid model error, got %v", err)
	}

	m, ok := c.Lookup("acme/thinker-1")
	if !ok || !m.IsCustom || m.DisplayName != "acme/thinker-1" {
		t.Fatalf("unexpected custom model: %+v ok=%v", m, ok)
	}
	if len(c.Custom()) != 1 {
		t.Fatalf("expected 1 custom model, got %d", len(c.Custom()))
	}
}

func TestRemoveOnlyCustom(t *testing.T) {
	c := New()
	if err := c.Remove("openai/gpt-4o"); !errors.Is(err, ErrBuiltinModel) {
		t.Fatalf("expected builtin error, got %v", err)
	}
	if err := c.Remove("nope"); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected unknown error, got %v", err)
	}
	_ = c.Add(Model{ID: "acme/x:free"})
	if err := c.Remove("acme/x:free"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := c.Lookup("acme/x:free"); ok {
		t.Fatalf("expected model to be gone")
	}
}

func TestSetCustomDropsCollisions(t *testing.T) {
	c := New()
	c.SetCustom([]Model{{ID: "a"}, {ID: "a"}, {ID: "openai/gpt-4o"}, {ID: ""}, {ID: "b"}})
	got := c.Custom()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected custom models: %+v", got)
	}
}

func TestFreeAndPremiumPartition(t *testing.T) {
	c := New()
	for _, m := range c.Free() {
		if !IsFreeTier(m.ID) {
			t.Fatalf("free model without :free suffix: %s", m.ID)
		}
	}
	for _, m := range c.Premium() {
		if IsFreeTier(m.ID) {
			t.Fatalf("premium model with :free suffix: %s", m.ID)
		}
	}
	if len(c.Free())+len(c.Premium()) != len(c.All()) {
		t.Fatalf("free and premium should cover every built-in model")
	}
}

func TestFallbackModelsAreFreeAndKnown(t *testing.T) {
	c := New()
	for _, id := range FallbackModels {
		if !IsFreeTier(id) {
			t.Fatalf("fallback %s is not free tier", id)
		}
		if _, ok := c.Lookup(id); !ok {
			t.Fatalf("fallback %s missing from catalog", id)
		}
	}
}

func TestPresetsCoverDefaultRoles(t *testing.T) {
	roles := []string{"observer", "geometer", "physicist", "perceptive", "philosopher", "integrator", "trickster"}
	for _, p := range Presets() {
		for _, r := range roles {
			if p.Models[r] == "" {
				t.Fatalf("preset %s has no model for %s", p.ID, r)
			}
		}
	}
	p, err := LookupPreset("free")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	p.Models["observer"] = "mutated"
	again, _ := LookupPreset("free")
	if again.Models["observer"] == "mutated" {
		t.Fatalf("preset lookup must return a copy")
	}
	if _, err := LookupPreset("gold"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected unknown preset, got %v", err)
	}
}
