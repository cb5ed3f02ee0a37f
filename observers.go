package gestalt

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// eventExtComponentName is the CloudEvents extension carrying the registry
// name of the component an event is about.
const eventExtComponentName = "componentname"

// Observer receives engine lifecycle events.
type Observer interface {
	// OnEvent is called for every delivered event the observer's filter
	// matches.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// MergedDefinitionAware marks an observer that inspects merged definitions.
// Such observers are re-registered at the end of the chain so they see the
// final definition state.
type MergedDefinitionAware interface {
	Observer
	OnMergedDefinition(name string, def *Definition)
}

// ImportMetadataAware is implemented by components that want to know which
// source imported them. The import-metadata observer injects it on
// creation.
type ImportMetadataAware interface {
	SetImportMetadata(importing *TypeMetadata)
}

// FunctionalObserver adapts a plain function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer that delegates to the handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent implements Observer.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements Observer.
func (f *FunctionalObserver) ObserverID() string { return f.id }

// RegisterObservers discovers observer instances resident in the factory's
// definitions and registers them in precedence tiers: priority-ordered
// first, then ordered, then the rest in discovery order. Merged-aware
// observers are re-registered after all tiers, and the inner-observer
// detector goes last so it always sees a complete chain. An early-creation
// checker is installed up front to flag components constructed before the
// chain is complete.
func (o *Orchestrator) RegisterObservers(factory *ComponentFactory) error {
	discovered := discoverInstances[Observer](factory, nil)

	targetCount := factory.ObserverCount() + 1 + len(discovered)
	if err := factory.AddObserver(newObserverChainChecker(factory, targetCount)); err != nil {
		return err
	}

	var priority, ordered, rest []Observer
	var mergedAware []Observer
	for _, obs := range discovered {
		if _, ok := obs.(MergedDefinitionAware); ok {
			mergedAware = append(mergedAware, obs)
		}
		switch obs.(type) {
		case PriorityOrdered:
			priority = append(priority, obs)
		case Ordered:
			ordered = append(ordered, obs)
		default:
			rest = append(rest, obs)
		}
	}

	cmp := factory.DependencyComparator()
	sortByOrder(priority, func(a, b any) int { return cmp(a, b) })
	sortByOrder(ordered, func(a, b any) int { return cmp(a, b) })

	for _, tier := range [][]Observer{priority, ordered, rest} {
		for _, obs := range tier {
			if err := factory.AddObserver(obs); err != nil {
				return err
			}
		}
	}

	// Re-registering moves merged-aware observers to the end of the chain.
	sortByOrder(mergedAware, func(a, b any) int { return cmp(a, b) })
	for _, obs := range mergedAware {
		if err := factory.AddObserver(obs); err != nil {
			return err
		}
	}

	return factory.AddObserver(newInnerObserverDetector(factory), EventTypeComponentCreated)
}

// observerChainChecker warns when a component is constructed while observer
// registration is still in progress: such a component is invisible to the
// observers registered after it.
type observerChainChecker struct {
	factory     *ComponentFactory
	targetCount int
}

func newObserverChainChecker(factory *ComponentFactory, targetCount int) *observerChainChecker {
	return &observerChainChecker{factory: factory, targetCount: targetCount}
}

func (c *observerChainChecker) ObserverID() string { return "gestalt.observerChainChecker" }

func (c *observerChainChecker) OnEvent(_ context.Context, event cloudevents.Event) error {
	if event.Type() != EventTypeComponentCreated {
		return nil
	}
	if c.factory.ObserverCount() < c.targetCount {
		name, _ := event.Extensions()[eventExtComponentName].(string)
		c.factory.Logger().Warn("Component created before the observer chain was complete; not all observers will see it",
			"component", name, "registered", c.factory.ObserverCount(), "expected", c.targetCount)
	}
	return nil
}

// innerObserverDetector registers components that are themselves observers
// as soon as they are created.
type innerObserverDetector struct {
	factory *ComponentFactory
}

func newInnerObserverDetector(factory *ComponentFactory) *innerObserverDetector {
	return &innerObserverDetector{factory: factory}
}

func (d *innerObserverDetector) ObserverID() string { return "gestalt.innerObserverDetector" }

func (d *innerObserverDetector) OnEvent(_ context.Context, event cloudevents.Event) error {
	name, _ := event.Extensions()[eventExtComponentName].(string)
	if name == "" {
		return nil
	}
	def, err := d.factory.Get(name)
	if err != nil {
		return nil
	}
	if obs, ok := def.Instance.(Observer); ok {
		return d.factory.AddObserver(obs)
	}
	return nil
}

// importMetadataObserver hands a freshly created component the metadata of
// the source that imported it.
type importMetadataObserver struct {
	factory *ComponentFactory
	tracker *ImportTracker
}

func newImportMetadataObserver(factory *ComponentFactory, tracker *ImportTracker) *importMetadataObserver {
	return &importMetadataObserver{factory: factory, tracker: tracker}
}

func (o *importMetadataObserver) ObserverID() string { return "gestalt.importMetadataObserver" }

func (o *importMetadataObserver) OnEvent(_ context.Context, event cloudevents.Event) error {
	name, _ := event.Extensions()[eventExtComponentName].(string)
	if name == "" {
		return nil
	}
	def, err := o.factory.Get(name)
	if err != nil {
		return nil
	}
	aware, ok := def.Instance.(ImportMetadataAware)
	if !ok || def.ClassName == "" {
		return nil
	}
	if importing := o.tracker.ImportingClassFor(def.ClassName); importing != nil {
		aware.SetImportMetadata(importing)
	}
	return nil
}

// discoverInstances scans the registry for definitions whose resident
// instance implements T, in registration order. Names listed in exclude are
// skipped.
func discoverInstances[T any](registry DefinitionRegistry, exclude map[string]bool) []T {
	var out []T
	for _, name := range registry.AllNames() {
		if exclude[name] {
			continue
		}
		def, err := registry.Get(name)
		if err != nil {
			continue
		}
		if inst, ok := def.Instance.(T); ok {
			out = append(out, inst)
		}
	}
	return out
}
