package gestalt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentLookupPriority(t *testing.T) {
	env := NewEnvironment()
	env.AddLast(NewMapPropertySource("low", map[string]any{"k": "low", "only.low": true}))
	env.AddFirst(NewMapPropertySource("high", map[string]any{"k": "high"}))

	v, ok := env.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "high", v)
	_, ok = env.Lookup("only.low")
	assert.True(t, ok)
	_, ok = env.Lookup("missing")
	assert.False(t, ok)
}

func TestEnvironmentAddBefore(t *testing.T) {
	env := NewEnvironment()
	env.AddLast(NewMapPropertySource("a", nil))
	env.AddLast(NewMapPropertySource("c", nil))
	env.AddBefore("c", NewMapPropertySource("b", nil))
	env.AddBefore("missing", NewMapPropertySource("d", nil))

	var names []string
	for _, ps := range env.PropertySources() {
		names = append(names, ps.Name())
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestEnvironmentTypedGetters(t *testing.T) {
	env := NewEnvironment()
	env.AddLast(NewMapPropertySource("m", map[string]any{
		"port":    "8080",
		"debug":   "true",
		"ratio":   "0.5",
		"already": 42,
	}))

	port, err := env.GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	debug, err := env.GetBool("debug")
	require.NoError(t, err)
	assert.True(t, debug)

	ratio, err := env.GetFloat("ratio")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ratio, 1e-9)

	already, err := env.GetInt("already")
	require.NoError(t, err)
	assert.Equal(t, 42, already)

	_, err = env.GetInt("missing")
	assert.ErrorIs(t, err, ErrPlaceholderUnresolvable)

	assert.Equal(t, "8080", env.GetString("port", ""))
	assert.Equal(t, "fallback", env.GetString("missing", "fallback"))
}

func TestResolvePlaceholders(t *testing.T) {
	env := NewEnvironment()
	env.AddLast(NewMapPropertySource("m", map[string]any{"name": "world", "n": 3}))

	assert.Equal(t, "hello world 3", env.ResolvePlaceholders("hello ${name} ${n}"))
	assert.Equal(t, "hello ${missing}", env.ResolvePlaceholders("hello ${missing}"))
	assert.Equal(t, "hello fallback", env.ResolvePlaceholders("hello ${missing:fallback}"))

	_, err := env.ResolveRequiredPlaceholders("hello ${missing}")
	assert.ErrorIs(t, err, ErrPlaceholderUnresolvable)

	got, err := env.ResolveRequiredPlaceholders("hello ${missing:ok}")
	require.NoError(t, err)
	assert.Equal(t, "hello ok", got)
}

func TestFilePropertySourceFormats(t *testing.T) {
	dir := t.TempDir()
	loader := &OSResourceLoader{BaseDir: dir}

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("app.yaml", "db:\n  host: localhost\n  port: 5432\n")
	write("app.toml", "[server]\naddr = \":8080\"\n")
	write("app.json", `{"feature": {"enabled": true}}`)

	yamlPS, err := NewFilePropertySource("", "app.yaml", "", loader)
	require.NoError(t, err)
	assert.Equal(t, "app.yaml", yamlPS.Name())
	host, ok := yamlPS.Lookup("db.host")
	require.True(t, ok)
	assert.Equal(t, "localhost", host)

	tomlPS, err := NewFilePropertySource("server", "app.toml", "", loader)
	require.NoError(t, err)
	addr, ok := tomlPS.Lookup("server.addr")
	require.True(t, ok)
	assert.Equal(t, ":8080", addr)

	jsonPS, err := NewFilePropertySource("", "app.json", "", loader)
	require.NoError(t, err)
	enabled, ok := jsonPS.Lookup("feature.enabled")
	require.True(t, ok)
	assert.Equal(t, true, enabled)
}

func TestFilePropertySourceMissingFile(t *testing.T) {
	loader := &OSResourceLoader{BaseDir: t.TempDir()}
	_, err := NewFilePropertySource("", "absent.yaml", "", loader)
	assert.ErrorIs(t, err, ErrPropertySourceUnresolvable)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestCompositePropertySourceRoundTrip(t *testing.T) {
	older := NewMapPropertySource("app", map[string]any{"k": "old", "only.old": 1})
	newer := NewMapPropertySource("app", map[string]any{"k": "new"})

	composite := NewCompositePropertySource("app")
	composite.Add(newer)
	composite.Add(older)

	v, ok := composite.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	_, ok = composite.Lookup("only.old")
	assert.True(t, ok)

	// Decomposing yields both original sources, newest first.
	members := composite.Sources()
	require.Len(t, members, 2)
	assert.Same(t, newer, members[0].(*MapPropertySource))
	assert.Same(t, older, members[1].(*MapPropertySource))
}

func TestEnvironmentReplace(t *testing.T) {
	env := NewEnvironment()
	env.AddLast(NewMapPropertySource("app", map[string]any{"k": "one"}))
	replaced := env.Replace("app", NewMapPropertySource("app", map[string]any{"k": "two"}))
	require.True(t, replaced)
	v, _ := env.Lookup("k")
	assert.Equal(t, "two", v)
	assert.False(t, env.Replace("missing", NewMapPropertySource("missing", nil)))
}
