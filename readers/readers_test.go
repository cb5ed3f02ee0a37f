package readers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaltframework/gestalt"
)

// memLoader serves resources from a map.
type memLoader struct {
	files map[string]string
}

func (l *memLoader) ReadResource(location string) ([]byte, error) {
	content, ok := l.files[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gestalt.ErrResourceNotFound, location)
	}
	return []byte(content), nil
}

func TestLookupRoutesByFormat(t *testing.T) {
	readerFor := Lookup(&memLoader{})

	for _, format := range []string{"yaml", "toml", "json"} {
		reader, err := readerFor(format)
		require.NoError(t, err, format)
		assert.NotNil(t, reader)
	}

	_, err := readerFor("xml")
	assert.ErrorIs(t, err, gestalt.ErrNoReaderForFormat)
}

func TestYAMLReaderLoadsDefinitions(t *testing.T) {
	loader := &memLoader{files: map[string]string{
		"defs.yaml": `
definitions:
  - name: cache
    class: app.Cache
    scope: prototype
    aliases: [store]
    initMethod: warmUp
    role: support
  - name: mailer
    class: app.Mailer
`,
	}}
	registry := gestalt.NewStdRegistry()
	require.NoError(t, NewYAMLReader(loader).Load("defs.yaml", registry))

	cache, err := registry.Get("cache")
	require.NoError(t, err)
	assert.Equal(t, "app.Cache", cache.ClassName)
	assert.Equal(t, gestalt.ScopePrototype, cache.Scope)
	assert.Equal(t, "warmUp", cache.InitMethod)
	assert.Equal(t, gestalt.RoleSupport, cache.Role)
	assert.Equal(t, gestalt.ProvenanceExternal, cache.Provenance)

	target, ok := registry.AliasTarget("store")
	require.True(t, ok)
	assert.Equal(t, "cache", target)

	mailer, err := registry.Get("mailer")
	require.NoError(t, err)
	assert.Equal(t, gestalt.ScopeSingleton, mailer.Scope)
}

func TestTOMLReaderLoadsDefinitions(t *testing.T) {
	loader := &memLoader{files: map[string]string{
		"defs.toml": `
[[definitions]]
name = "queue"
class = "app.Queue"
role = "infrastructure"
`,
	}}
	registry := gestalt.NewStdRegistry()
	require.NoError(t, NewTOMLReader(loader).Load("defs.toml", registry))

	queue, err := registry.Get("queue")
	require.NoError(t, err)
	assert.Equal(t, "app.Queue", queue.ClassName)
	assert.Equal(t, gestalt.RoleInfrastructure, queue.Role)
}

func TestJSONReaderLoadsDefinitions(t *testing.T) {
	loader := &memLoader{files: map[string]string{
		"defs.json": `{"definitions": [{"name": "gateway", "class": "app.Gateway", "destroyMethod": "shutdown"}]}`,
	}}
	registry := gestalt.NewStdRegistry()
	require.NoError(t, NewJSONReader(loader).Load("defs.json", registry))

	gateway, err := registry.Get("gateway")
	require.NoError(t, err)
	assert.Equal(t, "shutdown", gateway.DestroyMethod)
}

func TestReaderRejectsNamelessDefinition(t *testing.T) {
	loader := &memLoader{files: map[string]string{
		"defs.json": `{"definitions": [{"class": "app.Anonymous"}]}`,
	}}
	registry := gestalt.NewStdRegistry()
	err := NewJSONReader(loader).Load("defs.json", registry)
	assert.ErrorIs(t, err, gestalt.ErrMalformedDirective)
	assert.Zero(t, registry.Count())
}

func TestReaderPropagatesMissingResource(t *testing.T) {
	registry := gestalt.NewStdRegistry()
	err := NewYAMLReader(&memLoader{}).Load("absent.yaml", registry)
	assert.ErrorIs(t, err, gestalt.ErrResourceNotFound)
}

func TestReaderRejectsMalformedDocument(t *testing.T) {
	loader := &memLoader{files: map[string]string{"defs.json": `{`}}
	err := NewJSONReader(loader).Load("defs.json", gestalt.NewStdRegistry())
	assert.Error(t, err)
}
