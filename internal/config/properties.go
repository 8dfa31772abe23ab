package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
)

// LoadProperties reads stage properties from a YAML mapping file.
func LoadProperties(path string) ([]flow.Property, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read properties file: %w", err)
	}
	return ParseProperties(data)
}

// ParseProperties decodes a flat YAML mapping into properties, keeping the
// order in which keys are written. Scalar values are taken verbatim.
func ParseProperties(data []byte) ([]flow.Property, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse properties: %w", err)
	}

	// Empty document
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("properties must be a mapping, got line %d", mapping.Line)
	}

	props := make([]flow.Property, 0, len(mapping.Content)/2)
	seen := make(map[string]bool, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("property at line %d must be a scalar key and value", key.Line)
		}
		if seen[key.Value] {
			return nil, fmt.Errorf("duplicate property %q at line %d", key.Value, key.Line)
		}
		seen[key.Value] = true
		props = append(props, flow.Property{Name: key.Value, Value: value.Value})
	}

	return props, nil
}
