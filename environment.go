package gestalt

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// PropertySource is one named, ordered key/value source in the environment.
type PropertySource interface {
	Name() string
	Lookup(key string) (any, bool)
}

// MapPropertySource is a PropertySource backed by a plain map.
type MapPropertySource struct {
	name   string
	values map[string]any
}

// NewMapPropertySource creates a map-backed source.
func NewMapPropertySource(name string, values map[string]any) *MapPropertySource {
	if values == nil {
		values = make(map[string]any)
	}
	return &MapPropertySource{name: name, values: values}
}

// Name implements PropertySource.
func (m *MapPropertySource) Name() string { return m.name }

// Lookup implements PropertySource.
func (m *MapPropertySource) Lookup(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Values exposes the backing map.
func (m *MapPropertySource) Values() map[string]any { return m.values }

// FilePropertySource is a PropertySource loaded from a resource location.
// It can be reloaded in place, which the environment watcher relies on.
type FilePropertySource struct {
	name     string
	location string
	format   string

	mu     sync.RWMutex
	values map[string]any
}

// NewFilePropertySource loads the given location through the loader and
// parses it according to the (possibly inferred) format.
func NewFilePropertySource(name, location, format string, loader ResourceLoader) (*FilePropertySource, error) {
	ps := &FilePropertySource{name: name, location: location, format: InferFormat(location, format)}
	if ps.name == "" {
		ps.name = location
	}
	if err := ps.Reload(loader); err != nil {
		return nil, err
	}
	return ps, nil
}

// Name implements PropertySource.
func (f *FilePropertySource) Name() string { return f.name }

// Location returns the backing resource location.
func (f *FilePropertySource) Location() string { return f.location }

// Lookup implements PropertySource.
func (f *FilePropertySource) Lookup(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

// Reload re-reads and re-parses the backing resource, swapping the value
// map atomically.
func (f *FilePropertySource) Reload(loader ResourceLoader) error {
	data, err := loader.ReadResource(f.location)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPropertySourceUnresolvable, f.location, err)
	}
	values, err := parseProperties(data, f.format)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPropertySourceUnresolvable, f.location, err)
	}
	f.mu.Lock()
	f.values = values
	f.mu.Unlock()
	return nil
}

func parseProperties(data []byte, format string) (map[string]any, error) {
	values := make(map[string]any)
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parsing yaml properties: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parsing toml properties: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parsing json properties: %w", err)
		}
	}
	return flattenProperties("", values), nil
}

// flattenProperties turns nested documents into dotted keys so lookups stay
// flat: {"db": {"host": ...}} becomes "db.host".
func flattenProperties(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flattenProperties(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// CompositePropertySource layers several same-named sources. The first
// member takes priority; later members are fallbacks. Composing keeps every
// original source queryable through Sources.
type CompositePropertySource struct {
	name    string
	sources []PropertySource
}

// NewCompositePropertySource creates an empty composite.
func NewCompositePropertySource(name string) *CompositePropertySource {
	return &CompositePropertySource{name: name}
}

// Name implements PropertySource.
func (c *CompositePropertySource) Name() string { return c.name }

// Lookup implements PropertySource, first member wins.
func (c *CompositePropertySource) Lookup(key string) (any, bool) {
	for _, s := range c.sources {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}

// AddFirst prepends a source, making it the highest-priority member.
func (c *CompositePropertySource) AddFirst(s PropertySource) {
	c.sources = append([]PropertySource{s}, c.sources...)
}

// Add appends a source as the lowest-priority member.
func (c *CompositePropertySource) Add(s PropertySource) {
	c.sources = append(c.sources, s)
}

// Sources returns the members in priority order.
func (c *CompositePropertySource) Sources() []PropertySource { return c.sources }

// Environment is the mutable, ordered property-source list plus placeholder
// resolution and typed access. The slice front is the highest priority.
// It is exclusively owned by the in-progress resolution call; concurrent
// external mutation during resolution is not supported.
type Environment struct {
	sources []PropertySource
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment { return &Environment{} }

// PropertySources returns the sources in priority order.
func (e *Environment) PropertySources() []PropertySource { return e.sources }

// Source returns the source with the given name, or nil.
func (e *Environment) Source(name string) PropertySource {
	for _, s := range e.sources {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// AddFirst inserts a source at the highest priority.
func (e *Environment) AddFirst(s PropertySource) {
	e.sources = append([]PropertySource{s}, e.sources...)
}

// AddLast appends a source at the lowest priority.
func (e *Environment) AddLast(s PropertySource) {
	e.sources = append(e.sources, s)
}

// AddBefore inserts a source immediately above the named one. When the
// relative name is unknown the source is appended last.
func (e *Environment) AddBefore(relativeName string, s PropertySource) {
	for i, existing := range e.sources {
		if existing.Name() == relativeName {
			e.sources = append(e.sources[:i], append([]PropertySource{s}, e.sources[i:]...)...)
			return
		}
	}
	e.AddLast(s)
}

// Replace swaps the source with the given name in place.
func (e *Environment) Replace(name string, s PropertySource) bool {
	for i, existing := range e.sources {
		if existing.Name() == name {
			e.sources[i] = s
			return true
		}
	}
	return false
}

// Lookup finds the highest-priority value for a key.
func (e *Environment) Lookup(key string) (any, bool) {
	for _, s := range e.sources {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}

// GetString returns the value for key rendered as a string, or the fallback.
func (e *Environment) GetString(key, fallback string) string {
	v, ok := e.Lookup(key)
	if !ok {
		return fallback
	}
	return fmt.Sprintf("%v", v)
}

// GetInt returns the value for key converted to int.
func (e *Environment) GetInt(key string) (int, error) {
	return typedLookup[int](e, key)
}

// GetBool returns the value for key converted to bool.
func (e *Environment) GetBool(key string) (bool, error) {
	return typedLookup[bool](e, key)
}

// GetFloat returns the value for key converted to float64.
func (e *Environment) GetFloat(key string) (float64, error) {
	return typedLookup[float64](e, key)
}

func typedLookup[T any](e *Environment, key string) (T, error) {
	var zero T
	v, ok := e.Lookup(key)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrPlaceholderUnresolvable, key)
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	converted, err := cast.FromType(fmt.Sprintf("%v", v), reflect.TypeOf(zero))
	if err != nil {
		return zero, fmt.Errorf("converting %q: %w", key, err)
	}
	t, ok := converted.(T)
	if !ok {
		return zero, fmt.Errorf("converting %q: unexpected type %T", key, converted)
	}
	return t, nil
}

// ResolvePlaceholders substitutes ${key} and ${key:default} references,
// leaving unresolvable ones untouched.
func (e *Environment) ResolvePlaceholders(s string) string {
	out, _ := e.resolvePlaceholders(s, false)
	return out
}

// ResolveRequiredPlaceholders substitutes ${key} references and fails on
// the first unresolvable one.
func (e *Environment) ResolveRequiredPlaceholders(s string) (string, error) {
	return e.resolvePlaceholders(s, true)
}

func (e *Environment) resolvePlaceholders(s string, required bool) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end += start
		b.WriteString(s[:start])
		expr := s[start+2 : end]
		key, fallback := expr, ""
		hasFallback := false
		if i := strings.Index(expr, ":"); i >= 0 {
			key, fallback, hasFallback = expr[:i], expr[i+1:], true
		}
		if v, ok := e.Lookup(key); ok {
			b.WriteString(fmt.Sprintf("%v", v))
		} else if hasFallback {
			b.WriteString(fallback)
		} else if required {
			return "", fmt.Errorf("%w: ${%s}", ErrPlaceholderUnresolvable, key)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}
