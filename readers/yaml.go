package readers

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gestaltframework/gestalt"
)

// YAMLReader loads YAML definition documents.
type YAMLReader struct {
	loader gestalt.ResourceLoader
}

// NewYAMLReader creates a YAML reader over the given loader.
func NewYAMLReader(loader gestalt.ResourceLoader) *YAMLReader {
	return &YAMLReader{loader: loader}
}

// Load implements gestalt.ResourceReader.
func (r *YAMLReader) Load(location string, registry gestalt.DefinitionRegistry) error {
	data, err := r.loader.ReadResource(location)
	if err != nil {
		return err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing yaml document %s: %w", location, err)
	}
	return doc.apply(location, registry)
}
