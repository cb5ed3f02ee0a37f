// Package readers loads component definitions from externally formatted
// documents (YAML, TOML, JSON) into a definition registry. The engine
// routes to a reader by format hint; this package supplies the standard
// set.
package readers

import (
	"fmt"

	"github.com/gestaltframework/gestalt"
)

// Lookup returns a format router over the standard readers, all reading
// raw bytes through the given loader.
func Lookup(loader gestalt.ResourceLoader) gestalt.ReaderFor {
	return func(format string) (gestalt.ResourceReader, error) {
		switch format {
		case "yaml":
			return NewYAMLReader(loader), nil
		case "toml":
			return NewTOMLReader(loader), nil
		case "json":
			return NewJSONReader(loader), nil
		}
		return nil, fmt.Errorf("%w: %s", gestalt.ErrNoReaderForFormat, format)
	}
}
