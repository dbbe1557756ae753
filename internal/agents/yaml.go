package agents

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type registryFile struct {
	Agents []Config `yaml:"agents"`
}

// ExportYAML writes every agent as a YAML document.
func (r *Registry) ExportYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(registryFile{Agents: r.List()}); err != nil {
		return fmt.Errorf("encode agents: %w", err)
	}
	return enc.Close()
}

// ImportYAML replaces the registry with the agents read from rd. The same
// rules as Restore apply.
func (r *Registry) ImportYAML(rd io.Reader) error {
	var f registryFile
	if err := yaml.NewDecoder(rd).Decode(&f); err != nil {
		return fmt.Errorf("decode agents: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Agents))
	for _, c := range f.Agents {
		if c.Role == "" {
			return fmt.Errorf("%w: agent without role", ErrInvalidAgent)
		}
		if _, ok := seen[c.Role]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateAgent, c.Role)
		}
		seen[c.Role] = struct{}{}
	}
	r.Restore(f.Agents)
	return nil
}
