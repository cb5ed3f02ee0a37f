package gestalt

import "fmt"

// attrSourceProcessed marks a definition whose metadata was already taken
// up as a component-source candidate, so repeated scans skip it.
const attrSourceProcessed = "gestalt.sourceProcessed"

// SourceProcessor is the registry extension that performs component-source
// resolution: it scans the registry for source candidates, expands them into
// a resolved graph and emits the resulting definitions back into the same
// registry, repeating until no new candidates appear. It runs in the
// priority tier so every other extension sees the fully emitted registry.
type SourceProcessor struct {
	accessor    MetadataAccessor
	environment *Environment
	loader      ResourceLoader
	readerFor   ReaderFor
	logger      Logger

	registriesProcessed map[DefinitionRegistry]bool
	factoriesProcessed  map[*ComponentFactory]bool

	// tracker of the most recent resolution round, consulted when wiring the
	// import-metadata observer.
	tracker *ImportTracker
}

// NewSourceProcessor creates a source processor. The environment may be nil,
// in which case an empty one is created per run.
func NewSourceProcessor(accessor MetadataAccessor, env *Environment, logger Logger) *SourceProcessor {
	return &SourceProcessor{
		accessor:            accessor,
		environment:         env,
		logger:              ensureLogger(logger),
		registriesProcessed: make(map[DefinitionRegistry]bool),
		factoriesProcessed:  make(map[*ComponentFactory]bool),
	}
}

// SetResourceLoader installs the loader used for property sources and
// imported resource documents.
func (p *SourceProcessor) SetResourceLoader(loader ResourceLoader) { p.loader = loader }

// SetReaderFor installs the resource-reader lookup for imported definition
// documents.
func (p *SourceProcessor) SetReaderFor(readerFor ReaderFor) { p.readerFor = readerFor }

// Order implements Ordered.
func (p *SourceProcessor) Order() int { return HighestPrecedence }

// PriorityOrder implements PriorityOrdered.
func (p *SourceProcessor) PriorityOrder() {}

// ProcessRegistry implements RegistryExtension.
func (p *SourceProcessor) ProcessRegistry(registry DefinitionRegistry) error {
	if p.registriesProcessed[registry] {
		return fmt.Errorf("%w: source processing already ran against this registry", ErrRegistryAlreadyProcessed)
	}
	if f, ok := registry.(*ComponentFactory); ok && p.factoriesProcessed[f] {
		return fmt.Errorf("%w: factory processing already ran against this registry", ErrFactoryAlreadyProcessed)
	}
	p.registriesProcessed[registry] = true
	return p.processComponentSources(registry)
}

// ProcessFactory implements FactoryExtension. When the registry path did not
// run (the factory is driven without registry extensions), sources are
// resolved here; either way the import-metadata observer is installed.
func (p *SourceProcessor) ProcessFactory(factory *ComponentFactory) error {
	if p.factoriesProcessed[factory] {
		return fmt.Errorf("%w: factory processing already ran against this factory", ErrFactoryAlreadyProcessed)
	}
	p.factoriesProcessed[factory] = true

	if !p.registriesProcessed[factory] {
		if err := p.processComponentSources(factory); err != nil {
			return err
		}
	}
	return factory.AddObserver(newImportMetadataObserver(factory, p.Tracker()), EventTypeComponentCreated)
}

// Tracker returns the import tracker of the most recent run.
func (p *SourceProcessor) Tracker() *ImportTracker {
	if p.tracker == nil {
		p.tracker = NewImportTracker()
	}
	return p.tracker
}

func (p *SourceProcessor) processComponentSources(registry DefinitionRegistry) error {
	roots, err := p.collectCandidates(registry, nil)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return nil
	}

	env := p.environment
	if env == nil {
		env = NewEnvironment()
	}
	evaluator := NewConditionEvaluator(registry, env)
	p.tracker = NewImportTracker()
	resolver := NewResolver(p.accessor, evaluator, env, p.loader, registry, p.tracker, p.logger)
	reader := NewDefinitionReader(registry, evaluator, env, p.loader, p.readerFor, p.tracker, p.logger)

	emitted := make(map[*ComponentSource]bool)
	seenNames := make(map[string]bool)
	for _, name := range registry.AllNames() {
		seenNames[name] = true
	}

	for len(roots) > 0 {
		graph, err := resolver.Resolve(roots...)
		if err != nil {
			return err
		}
		for _, src := range graph.Sources() {
			if err := src.Validate(); err != nil {
				return err
			}
		}

		var fresh []*ComponentSource
		for _, src := range graph.Sources() {
			if !emitted[src] {
				emitted[src] = true
				fresh = append(fresh, src)
			}
		}
		if err := reader.EmitSources(fresh); err != nil {
			return err
		}
		p.logger.Debug("Emitted component sources", "count", len(fresh))

		// Emission may have introduced new candidate definitions (through
		// resource documents or registrars); pick them up and go again.
		roots = nil
		if registry.Count() > len(seenNames) {
			var added []string
			for _, name := range registry.AllNames() {
				if !seenNames[name] {
					seenNames[name] = true
					added = append(added, name)
				}
			}
			roots, err = p.collectCandidates(registry, added)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// collectCandidates turns unprocessed source-candidate definitions into
// root sources, sorted by explicit order. A nil name filter scans the whole
// registry.
func (p *SourceProcessor) collectCandidates(registry DefinitionRegistry, names []string) ([]*ComponentSource, error) {
	if names == nil {
		names = registry.AllNames()
	}
	var defs []*Definition
	for _, name := range names {
		def, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		if _, done := def.Attribute(attrSourceProcessed); done {
			p.logger.Debug("Skipping already processed source candidate", "name", name)
			continue
		}
		if def.Metadata == nil || !def.Metadata.IsComponentCandidate() {
			continue
		}
		// Factory-method definitions carry their declaring class's metadata
		// but are products of resolution, never candidates.
		if def.FactoryMethodName != "" {
			continue
		}
		def.SetAttribute(attrSourceProcessed, true)
		def.Name = name
		defs = append(defs, def)
	}
	sortByOrder(defs, func(a, b any) int {
		return a.(*Definition).Order - b.(*Definition).Order
	})
	roots := make([]*ComponentSource, 0, len(defs))
	for _, def := range defs {
		roots = append(roots, NewComponentSource(def.Metadata, def.Name))
	}
	return roots, nil
}
