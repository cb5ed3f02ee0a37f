package gestalt

import "fmt"

// RegistryExtension mutates the definition registry before any component is
// constructed. Registry extensions may add, replace or remove definitions,
// including definitions of further extensions picked up in later rounds.
type RegistryExtension interface {
	ProcessRegistry(registry DefinitionRegistry) error
}

// FactoryExtension adjusts the component factory after all registry
// mutation is done. A registry extension is the wider capability: every
// registry extension is expected to also act on the factory and is given
// its factory callback before plain factory extensions run.
type FactoryExtension interface {
	ProcessFactory(factory *ComponentFactory) error
}

// Orchestrator sequences extensions against a factory. Each factory may be
// driven through each entry point at most once; a second run is a usage
// error, guarded by identity.
type Orchestrator struct {
	logger              Logger
	processedRegistries map[*ComponentFactory]bool
	processedFactories  map[*ComponentFactory]bool
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(logger Logger) *Orchestrator {
	return &Orchestrator{
		logger:              ensureLogger(logger),
		processedRegistries: make(map[*ComponentFactory]bool),
		processedFactories:  make(map[*ComponentFactory]bool),
	}
}

// RunRegistryExtensions drives every extension against the factory:
//
//  1. Manually supplied extensions run first, immediately, in given order.
//  2. Registry-resident priority-ordered registry extensions, sorted.
//  3. Registry-resident ordered registry extensions, sorted.
//  4. Remaining registry extensions, re-scanning until a fixed point since
//     each round may register definitions of further extensions.
//
// Afterwards every registry extension that is also a factory extension gets
// its factory callback in accumulated order, then manual factory-only
// extensions, then registry-resident factory-only extensions in the same
// three tiers. The merged-definition cache is cleared at the end.
func (o *Orchestrator) RunRegistryExtensions(factory *ComponentFactory, manual ...any) error {
	if o.processedRegistries[factory] {
		return fmt.Errorf("%w: registry extensions already ran for this factory", ErrRegistryAlreadyProcessed)
	}
	o.processedRegistries[factory] = true

	processed := make(map[string]bool)
	var registryExts []RegistryExtension
	var manualFactoryOnly []FactoryExtension

	for _, ext := range manual {
		switch e := ext.(type) {
		case RegistryExtension:
			if err := o.invokeRegistry(e, factory); err != nil {
				return err
			}
			registryExts = append(registryExts, e)
		case FactoryExtension:
			manualFactoryOnly = append(manualFactoryOnly, e)
		default:
			return fmt.Errorf("%w: %T is neither a registry nor a factory extension", ErrMalformedDirective, ext)
		}
	}

	cmp := factory.DependencyComparator()

	// Priority tier.
	batch := discoverRegistryExtensions(factory, processed, func(ext RegistryExtension) bool {
		_, ok := ext.(PriorityOrdered)
		return ok
	})
	sortByOrder(batch, func(a, b any) int { return cmp(a, b) })
	for _, ext := range batch {
		if err := o.invokeRegistry(ext, factory); err != nil {
			return err
		}
		registryExts = append(registryExts, ext)
	}

	// Ordered tier.
	batch = discoverRegistryExtensions(factory, processed, func(ext RegistryExtension) bool {
		_, ok := ext.(Ordered)
		return ok
	})
	sortByOrder(batch, func(a, b any) int { return cmp(a, b) })
	for _, ext := range batch {
		if err := o.invokeRegistry(ext, factory); err != nil {
			return err
		}
		registryExts = append(registryExts, ext)
	}

	// Remaining tier, to a fixed point: an extension run may plant further
	// extension definitions.
	for {
		batch = discoverRegistryExtensions(factory, processed, func(RegistryExtension) bool { return true })
		if len(batch) == 0 {
			break
		}
		sortByOrder(batch, func(a, b any) int { return cmp(a, b) })
		for _, ext := range batch {
			if err := o.invokeRegistry(ext, factory); err != nil {
				return err
			}
			registryExts = append(registryExts, ext)
		}
	}

	// Factory callbacks of the registry extensions, in accumulated order.
	for _, ext := range registryExts {
		if fe, ok := ext.(FactoryExtension); ok {
			if err := o.invokeFactory(fe, factory); err != nil {
				return err
			}
		}
	}
	for _, fe := range manualFactoryOnly {
		if err := o.invokeFactory(fe, factory); err != nil {
			return err
		}
	}
	if err := o.runResidentFactoryExtensions(factory, processed); err != nil {
		return err
	}

	factory.ClearMetadataCache()
	return nil
}

// RunFactoryExtensions drives factory extensions only, for registries whose
// definitions were populated without registry extensions.
func (o *Orchestrator) RunFactoryExtensions(factory *ComponentFactory, manual ...FactoryExtension) error {
	if o.processedFactories[factory] {
		return fmt.Errorf("%w: factory extensions already ran for this factory", ErrFactoryAlreadyProcessed)
	}
	o.processedFactories[factory] = true

	for _, fe := range manual {
		if err := o.invokeFactory(fe, factory); err != nil {
			return err
		}
	}
	if err := o.runResidentFactoryExtensions(factory, nil); err != nil {
		return err
	}
	factory.ClearMetadataCache()
	return nil
}

// runResidentFactoryExtensions runs registry-resident factory-only
// extensions in the priority / ordered / rest tiers. Names in skip were
// already driven through the registry path.
func (o *Orchestrator) runResidentFactoryExtensions(factory *ComponentFactory, skip map[string]bool) error {
	var priority, ordered, rest []FactoryExtension
	for _, name := range factory.AllNames() {
		if skip[name] {
			continue
		}
		def, err := factory.Get(name)
		if err != nil {
			continue
		}
		fe, ok := def.Instance.(FactoryExtension)
		if !ok {
			continue
		}
		if _, isRegistry := def.Instance.(RegistryExtension); isRegistry && skip != nil {
			// Registry extensions already received their factory callback.
			continue
		}
		switch def.Instance.(type) {
		case PriorityOrdered:
			priority = append(priority, fe)
		case Ordered:
			ordered = append(ordered, fe)
		default:
			rest = append(rest, fe)
		}
	}
	cmp := factory.DependencyComparator()
	sortByOrder(priority, func(a, b any) int { return cmp(a, b) })
	sortByOrder(ordered, func(a, b any) int { return cmp(a, b) })
	for _, tier := range [][]FactoryExtension{priority, ordered, rest} {
		for _, fe := range tier {
			if err := o.invokeFactory(fe, factory); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) invokeRegistry(ext RegistryExtension, factory *ComponentFactory) error {
	o.logger.Debug("Running registry extension", "extension", fmt.Sprintf("%T", ext))
	if err := ext.ProcessRegistry(factory); err != nil {
		return fmt.Errorf("registry extension %T: %w", ext, err)
	}
	return nil
}

func (o *Orchestrator) invokeFactory(ext FactoryExtension, factory *ComponentFactory) error {
	o.logger.Debug("Running factory extension", "extension", fmt.Sprintf("%T", ext))
	if err := ext.ProcessFactory(factory); err != nil {
		return fmt.Errorf("factory extension %T: %w", ext, err)
	}
	return nil
}

// discoverRegistryExtensions scans the factory for resident, not yet
// processed registry extensions matching the tier predicate, marking the
// returned ones processed.
func discoverRegistryExtensions(factory *ComponentFactory, processed map[string]bool, tier func(RegistryExtension) bool) []RegistryExtension {
	var out []RegistryExtension
	for _, name := range factory.AllNames() {
		if processed[name] {
			continue
		}
		def, err := factory.Get(name)
		if err != nil {
			continue
		}
		ext, ok := def.Instance.(RegistryExtension)
		if !ok || !tier(ext) {
			continue
		}
		processed[name] = true
		out = append(out, ext)
	}
	return out
}
