package gestalt

import (
	"fmt"
	"slices"
)

// DefinitionRegistry is the key/value store of component definitions the
// engine mutates. Iteration order of AllNames is registration order:
// resolution order is part of the observable contract, so the registry must
// be deterministic.
type DefinitionRegistry interface {
	Has(name string) bool
	Get(name string) (*Definition, error)
	Put(name string, def *Definition) error
	Remove(name string) error
	AllNames() []string
	Count() int

	// RegisterAlias binds an additional name to an existing definition name.
	RegisterAlias(name, alias string) error

	// AllowOverride reports whether replacing an explicit top-level
	// definition is permitted. When false, such a replacement attempt is a
	// structural error.
	AllowOverride() bool
}

// StdRegistry is the standard insertion-ordered DefinitionRegistry.
type StdRegistry struct {
	defs          map[string]*Definition
	order         []string
	aliases       map[string]string
	allowOverride bool
}

// NewStdRegistry creates an empty registry with overriding allowed.
func NewStdRegistry() *StdRegistry {
	return &StdRegistry{
		defs:          make(map[string]*Definition),
		aliases:       make(map[string]string),
		allowOverride: true,
	}
}

// SetAllowOverride toggles the override-allowed flag.
func (r *StdRegistry) SetAllowOverride(allow bool) { r.allowOverride = allow }

// AllowOverride implements DefinitionRegistry.
func (r *StdRegistry) AllowOverride() bool { return r.allowOverride }

// Has implements DefinitionRegistry.
func (r *StdRegistry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Get implements DefinitionRegistry.
func (r *StdRegistry) Get(name string) (*Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
	}
	return def, nil
}

// Put implements DefinitionRegistry. Replacing an existing name keeps its
// original position in the iteration order.
func (r *StdRegistry) Put(name string, def *Definition) error {
	if name == "" {
		return ErrDefinitionNameEmpty
	}
	if _, exists := r.defs[name]; !exists {
		r.order = append(r.order, name)
	}
	r.defs[name] = def
	return nil
}

// Remove implements DefinitionRegistry.
func (r *StdRegistry) Remove(name string) error {
	if _, ok := r.defs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
	}
	delete(r.defs, name)
	if i := slices.Index(r.order, name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	for alias, target := range r.aliases {
		if target == name {
			delete(r.aliases, alias)
		}
	}
	return nil
}

// AllNames implements DefinitionRegistry.
func (r *StdRegistry) AllNames() []string {
	return slices.Clone(r.order)
}

// Count implements DefinitionRegistry.
func (r *StdRegistry) Count() int { return len(r.defs) }

// RegisterAlias implements DefinitionRegistry. Re-binding an alias to the
// same name is a no-op; binding an alias that collides with a definition
// name is an error.
func (r *StdRegistry) RegisterAlias(name, alias string) error {
	if alias == name {
		return nil
	}
	if _, ok := r.defs[alias]; ok {
		return fmt.Errorf("%w: %s", ErrAliasNameInUse, alias)
	}
	r.aliases[alias] = name
	return nil
}

// AliasTarget resolves an alias to its definition name.
func (r *StdRegistry) AliasTarget(alias string) (string, bool) {
	name, ok := r.aliases[alias]
	return name, ok
}
