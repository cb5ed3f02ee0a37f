package gestalt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResourceLoader reads raw resource bytes for property sources and imported
// definition documents. The engine performs no I/O of its own beyond what a
// loader does synchronously.
type ResourceLoader interface {
	ReadResource(location string) ([]byte, error)
}

// OSResourceLoader reads resources from the local filesystem, resolving
// relative locations against an optional base directory.
type OSResourceLoader struct {
	BaseDir string
}

// ReadResource implements ResourceLoader.
func (l *OSResourceLoader) ReadResource(location string) ([]byte, error) {
	path := location
	if l.BaseDir != "" && !filepath.IsAbs(location) {
		path = filepath.Join(l.BaseDir, location)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, location)
		}
		return nil, fmt.Errorf("reading resource %s: %w", location, err)
	}
	return data, nil
}

// ResourceReader loads component definitions from one externally formatted
// document directly into a registry. Implementations live in the readers
// subpackage; the engine only routes to them by format.
type ResourceReader interface {
	Load(location string, registry DefinitionRegistry) error
}

// ReaderFor resolves a ResourceReader for a format hint ("yaml", "toml",
// "json", ...). The definition reader caches the returned instances per
// emission pass.
type ReaderFor func(format string) (ResourceReader, error)

// InferFormat derives a format hint from a location's file extension.
// An explicit hint always wins over inference.
func InferFormat(location, explicit string) string {
	if explicit != "" {
		return explicit
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}
