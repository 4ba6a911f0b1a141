package index

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// routesManifest is the shape of a routes.yaml manifest.
type routesManifest struct {
	Routes []RouteRecord `yaml:"routes"`
}

// LoadRoutesYAML loads a route index from a YAML manifest. This is the
// fallback for projects whose framework exports routes as a manifest instead
// of feeding them through the scanner.
func LoadRoutesYAML(path string) ([]RouteRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes manifest: %w", err)
	}

	var manifest routesManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse routes manifest: %w", err)
	}

	for i := range manifest.Routes {
		if manifest.Routes[i].Method == "" {
			manifest.Routes[i].Method = "GET"
		}
	}
	return manifest.Routes, nil
}
