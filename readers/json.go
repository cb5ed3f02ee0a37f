package readers

import (
	"encoding/json"
	"fmt"

	"github.com/gestaltframework/gestalt"
)

// JSONReader loads JSON definition documents.
type JSONReader struct {
	loader gestalt.ResourceLoader
}

// NewJSONReader creates a JSON reader over the given loader.
func NewJSONReader(loader gestalt.ResourceLoader) *JSONReader {
	return &JSONReader{loader: loader}
}

// Load implements gestalt.ResourceReader.
func (r *JSONReader) Load(location string, registry gestalt.DefinitionRegistry) error {
	data, err := r.loader.ReadResource(location)
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing json document %s: %w", location, err)
	}
	return doc.apply(location, registry)
}
