package readers

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/gestaltframework/gestalt"
)

// TOMLReader loads TOML definition documents.
type TOMLReader struct {
	loader gestalt.ResourceLoader
}

// NewTOMLReader creates a TOML reader over the given loader.
func NewTOMLReader(loader gestalt.ResourceLoader) *TOMLReader {
	return &TOMLReader{loader: loader}
}

// Load implements gestalt.ResourceReader.
func (r *TOMLReader) Load(location string, registry gestalt.DefinitionRegistry) error {
	data, err := r.loader.ReadResource(location)
	if err != nil {
		return err
	}
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing toml document %s: %w", location, err)
	}
	return doc.apply(location, registry)
}
