package gestalt

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// ComponentFactory is the standard registry plus the runtime-facing extras
// the extension machinery needs: merged-definition caching, an observer
// chain for lifecycle events, and a pluggable dependency comparator. It is
// a DefinitionRegistry itself; extension sequencing relies on the registry
// and the factory being the same object.
type ComponentFactory struct {
	*StdRegistry

	logger     Logger
	comparator OrderComparator
	merged     map[string]*Definition
	observers  []*observerRegistration
}

type observerRegistration struct {
	observer     Observer
	eventTypes   []string
	registeredAt time.Time
}

// ObserverInfo describes one registered observer for introspection.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// NewComponentFactory creates an empty factory.
func NewComponentFactory(logger Logger) *ComponentFactory {
	return &ComponentFactory{
		StdRegistry: NewStdRegistry(),
		logger:      ensureLogger(logger),
		merged:      make(map[string]*Definition),
	}
}

// Logger returns the factory's logger.
func (f *ComponentFactory) Logger() Logger { return f.logger }

// SetDependencyComparator installs the comparator extension sequencing and
// observer registration sort by. Nil restores the default.
func (f *ComponentFactory) SetDependencyComparator(cmp OrderComparator) { f.comparator = cmp }

// DependencyComparator returns the effective comparator.
func (f *ComponentFactory) DependencyComparator() OrderComparator {
	if f.comparator != nil {
		return f.comparator
	}
	return defaultOrderComparator
}

// MergedDefinition returns a normalized copy of the named definition with
// defaults applied, cached until ClearMetadataCache.
func (f *ComponentFactory) MergedDefinition(name string) (*Definition, error) {
	if def, ok := f.merged[name]; ok {
		return def, nil
	}
	raw, err := f.Get(name)
	if err != nil {
		return nil, err
	}
	def := raw.Clone()
	if def.Scope == "" {
		def.Scope = ScopeSingleton
	}
	f.merged[name] = def
	return def, nil
}

// ClearMetadataCache drops every cached merged definition. Called after the
// extension run because extensions may have modified raw definitions.
func (f *ComponentFactory) ClearMetadataCache() {
	f.merged = make(map[string]*Definition)
}

// Put implements DefinitionRegistry, additionally invalidating the merged
// cache entry for the name.
func (f *ComponentFactory) Put(name string, def *Definition) error {
	delete(f.merged, name)
	return f.StdRegistry.Put(name, def)
}

// Remove implements DefinitionRegistry, additionally invalidating the
// merged cache entry for the name.
func (f *ComponentFactory) Remove(name string) error {
	delete(f.merged, name)
	return f.StdRegistry.Remove(name)
}

// AddObserver appends an observer to the chain, optionally filtered to
// specific event types (none means all). Re-adding an observer with the
// same ID moves it to the end of the chain and merges its event types.
func (f *ComponentFactory) AddObserver(o Observer, eventTypes ...string) error {
	if o == nil {
		return ErrObserverNil
	}
	for i, reg := range f.observers {
		if reg.observer.ObserverID() != o.ObserverID() {
			continue
		}
		merged := mergeEventTypes(reg.eventTypes, eventTypes)
		f.observers = append(f.observers[:i], f.observers[i+1:]...)
		f.observers = append(f.observers, &observerRegistration{
			observer:     o,
			eventTypes:   merged,
			registeredAt: reg.registeredAt,
		})
		return nil
	}
	f.observers = append(f.observers, &observerRegistration{
		observer:     o,
		eventTypes:   eventTypes,
		registeredAt: time.Now(),
	})
	return nil
}

// RemoveObserver drops the observer with the given ID.
func (f *ComponentFactory) RemoveObserver(o Observer) error {
	if o == nil {
		return ErrObserverNil
	}
	for i, reg := range f.observers {
		if reg.observer.ObserverID() == o.ObserverID() {
			f.observers = append(f.observers[:i], f.observers[i+1:]...)
			return nil
		}
	}
	return nil
}

// ObserverCount returns the number of registered observers.
func (f *ComponentFactory) ObserverCount() int { return len(f.observers) }

// Observers returns descriptions of the registered observers, in chain
// order.
func (f *ComponentFactory) Observers() []ObserverInfo {
	out := make([]ObserverInfo, 0, len(f.observers))
	for _, reg := range f.observers {
		out = append(out, ObserverInfo{
			ID:           reg.observer.ObserverID(),
			EventTypes:   append([]string(nil), reg.eventTypes...),
			RegisteredAt: reg.registeredAt,
		})
	}
	return out
}

// NotifyObservers delivers the event to every observer whose filter matches,
// in chain order. Observer errors are logged and do not stop delivery.
func (f *ComponentFactory) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	var firstErr error
	for _, reg := range f.observers {
		if !reg.matches(event.Type()) {
			continue
		}
		if err := reg.observer.OnEvent(ctx, event); err != nil {
			f.logger.Error("Observer failed handling event",
				"observer", reg.observer.ObserverID(), "type", event.Type(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("observer %s: %w", reg.observer.ObserverID(), err)
			}
		}
	}
	return firstErr
}

func (reg *observerRegistration) matches(eventType string) bool {
	if len(reg.eventTypes) == 0 {
		return true
	}
	for _, t := range reg.eventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

func mergeEventTypes(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		// An empty filter means all events; merging with anything stays all.
		return nil
	}
	out := append([]string(nil), a...)
	for _, t := range b {
		found := false
		for _, existing := range out {
			if existing == t {
				found = true
				break
			}
		}
		if !found {
			out = append(out, t)
		}
	}
	return out
}
