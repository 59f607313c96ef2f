package crates

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

type crateManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Dependencies map[string]toml.Primitive `toml:"dependencies"`
}

// ManifestDependencies parses a crate manifest and returns its declared
// dependency names in sorted order. A manifest without a [dependencies]
// table yields an empty list.
func ManifestDependencies(text string) ([]string, error) {
	var m crateManifest
	meta, err := toml.Decode(text, &m)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if !meta.IsDefined("dependencies") || len(m.Dependencies) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
