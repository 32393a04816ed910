package tree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// ManifestName is the file written at the root of every assembled tree.
const ManifestName = "deps.toml"

type tomlManifest struct {
	Package      string           `toml:"package"`
	World        string           `toml:"world,omitempty"`
	Strategy     string           `toml:"strategy"`
	GenerateAll  bool             `toml:"generate-all"`
	Dependencies []tomlDependency `toml:"dependency"`
}

type tomlDependency struct {
	Package  string   `toml:"package"`
	Path     string   `toml:"path"`
	Files    []string `toml:"files"`
	Bindings string   `toml:"bindings,omitempty"`
}

func writeManifest(root string, t *ResolvedTree, world string) error {
	m := tomlManifest{
		Package:     t.Package,
		World:       world,
		Strategy:    t.Strategy.String(),
		GenerateAll: isGenerateAll(t.Mapping),
	}
	for _, d := range t.Deps {
		m.Dependencies = append(m.Dependencies, tomlDependency{
			Package:  d.Package,
			Path:     d.Dir,
			Files:    d.Files,
			Bindings: t.Mapping.Strategies()[d.Package],
		})
	}

	f, err := os.Create(filepath.Join(root, ManifestName))
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(&m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", ManifestName, err)
	}
	return f.Close()
}

// ReadManifest loads the deps.toml of an assembled tree and returns the
// dependency package to directory map it records.
func ReadManifest(root string) (map[string]string, error) {
	buff, err := os.ReadFile(filepath.Join(root, ManifestName))
	if err != nil {
		return nil, err
	}
	var m tomlManifest
	if err := toml.Unmarshal(buff, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	out := make(map[string]string, len(m.Dependencies))
	for _, d := range m.Dependencies {
		out[d.Package] = d.Path
	}
	return out, nil
}

func isGenerateAll(m Mapping) bool {
	_, ok := m.(GenerateAll)
	return ok
}
