package gestalt

import (
	"errors"
	"fmt"
	"strings"
)

// Resolver expands root component sources into a closed ResolvedGraph. The
// graph accumulates across Resolve calls so incremental rounds (new
// candidates discovered after emission) merge into the same graph. A
// Resolver is not safe for concurrent use.
type Resolver struct {
	accessor    MetadataAccessor
	evaluator   ConditionEvaluator
	environment *Environment
	loader      ResourceLoader
	registry    DefinitionRegistry
	tracker     *ImportTracker
	logger      Logger

	graph             *ResolvedGraph
	knownSuperclasses map[string]*ComponentSource
	parseSkipped      map[string]bool

	// propertySourceNames remembers insertion order of sources this resolver
	// added, newest last. A later source is inserted just above the previous
	// one so declaration order maps to ascending priority.
	propertySourceNames []string

	importStack []*ComponentSource
	deferred    []*deferredImport
}

// NewResolver creates a resolver over the given collaborators. The tracker
// records which source imported which class and is shared with the
// definition reader.
func NewResolver(accessor MetadataAccessor, evaluator ConditionEvaluator, env *Environment,
	loader ResourceLoader, registry DefinitionRegistry, tracker *ImportTracker, logger Logger) *Resolver {
	if tracker == nil {
		tracker = NewImportTracker()
	}
	return &Resolver{
		accessor:          accessor,
		evaluator:         evaluator,
		environment:       env,
		loader:            loader,
		registry:          registry,
		tracker:           tracker,
		logger:            ensureLogger(logger),
		graph:             newResolvedGraph(),
		knownSuperclasses: make(map[string]*ComponentSource),
		parseSkipped:      make(map[string]bool),
	}
}

// Tracker returns the import tracker shared with the definition reader.
func (r *Resolver) Tracker() *ImportTracker { return r.tracker }

// Resolve expands the given roots plus everything reachable from them and
// returns the accumulated graph. Deferred import selectors collected during
// the pass are expanded at the end, grouped by their group key.
func (r *Resolver) Resolve(roots ...*ComponentSource) (*ResolvedGraph, error) {
	r.deferred = []*deferredImport{}
	for _, root := range roots {
		if err := r.processSource(root); err != nil {
			return nil, err
		}
	}
	if err := r.processDeferredImports(); err != nil {
		return nil, err
	}
	return r.graph, nil
}

// Graph returns the graph accumulated so far.
func (r *Resolver) Graph() *ResolvedGraph { return r.graph }

func (r *Resolver) processSource(src *ComponentSource) error {
	className := src.ClassName()
	if r.parseSkipped[className] {
		return nil
	}
	if r.evaluator.ShouldSkip(src.Metadata(), PhaseParse) {
		r.parseSkipped[className] = true
		r.logger.Debug("Skipping component source at parse phase", "class", className)
		return nil
	}

	if existing := r.graph.get(className); existing != nil {
		if src.IsImported() {
			// Another import of an already resolved class only adds the new
			// back-reference.
			if existing.IsImported() {
				existing.mergeImportedBy(src)
			}
			return nil
		}
		// An explicit occurrence evicts the imported one and is resolved
		// fresh, together with any superclass claims the evicted node made.
		r.graph.remove(className)
		for super, claimant := range r.knownSuperclasses {
			if claimant == existing {
				delete(r.knownSuperclasses, super)
			}
		}
	}

	md := src.Metadata()
	for md != nil {
		next, err := r.doProcessSource(src, md)
		if err != nil {
			return err
		}
		md = next
	}
	r.graph.put(src)
	return nil
}

// doProcessSource handles one type of the source's superclass chain and
// returns the superclass metadata to fold in next, or nil when the chain is
// exhausted.
func (r *Resolver) doProcessSource(src *ComponentSource, md *TypeMetadata) (*TypeMetadata, error) {
	if err := r.processMemberClasses(src, md); err != nil {
		return nil, err
	}

	for _, ann := range md.AnnotationsOf(AnnotationPropertySource) {
		if err := r.processPropertySource(md, ann); err != nil {
			return nil, err
		}
	}

	imports, err := r.collectImports(md)
	if err != nil {
		return nil, err
	}
	if err := r.processImports(src, md, imports, true); err != nil {
		return nil, err
	}

	for _, ann := range md.AnnotationsOf(AnnotationImportResource) {
		locations := ann.Strings("locations")
		if len(locations) == 0 {
			return nil, fmt.Errorf("%w: importresource on %s declares no locations", ErrMalformedDirective, md.ClassName)
		}
		for _, loc := range locations {
			resolved, err := r.environment.ResolveRequiredPlaceholders(loc)
			if err != nil {
				return nil, err
			}
			src.AddImportedResource(resolved, ann.String("format"))
		}
	}

	for _, m := range retrieveFactoryMethods(md) {
		src.AddFactoryMethod(m)
	}

	if err := r.processInterfaces(src, md); err != nil {
		return nil, err
	}

	if super := md.SuperclassName; super != "" && !isBuiltinType(super) {
		if _, known := r.knownSuperclasses[super]; !known {
			r.knownSuperclasses[super] = src
			superMD, err := r.accessor.ReadMetadata(super)
			if err != nil {
				return nil, fmt.Errorf("resolving superclass of %s: %w", md.ClassName, err)
			}
			return superMD, nil
		}
	}
	return nil, nil
}

// processMemberClasses resolves nested member types that qualify as sources
// themselves, registered as imported by the enclosing source.
func (r *Resolver) processMemberClasses(src *ComponentSource, md *TypeMetadata) error {
	if len(md.NestedClassNames) == 0 {
		return nil
	}
	var candidates []*TypeMetadata
	for _, nested := range md.NestedClassNames {
		nmd, err := r.accessor.ReadMetadata(nested)
		if err != nil {
			return fmt.Errorf("resolving member class of %s: %w", md.ClassName, err)
		}
		if nmd.IsComponentCandidate() && nmd.ClassName != src.ClassName() {
			candidates = append(candidates, nmd)
		}
	}
	sortByOrder(candidates, func(a, b any) int {
		return a.(*TypeMetadata).Order() - b.(*TypeMetadata).Order()
	})
	for _, candidate := range candidates {
		if r.isOnStack(src.ClassName()) {
			return r.circularImportError(src)
		}
		r.push(src)
		err := r.processSource(newImportedSource(candidate, src))
		r.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) processPropertySource(md *TypeMetadata, ann Annotation) error {
	locations := ann.Strings("locations")
	if len(locations) == 0 {
		return fmt.Errorf("%w: propertysource on %s declares no locations", ErrMalformedDirective, md.ClassName)
	}
	name := ann.String("name")
	format := ann.String("format")
	ignoreNotFound := ann.Bool("ignoreNotFound")

	for _, loc := range locations {
		resolved, err := r.environment.ResolveRequiredPlaceholders(loc)
		if err != nil {
			if ignoreNotFound {
				r.logger.Info("Ignoring property source with unresolvable location", "location", loc)
				continue
			}
			return err
		}
		ps, err := NewFilePropertySource(name, resolved, format, r.loader)
		if err != nil {
			if ignoreNotFound && errors.Is(err, ErrPropertySourceUnresolvable) {
				r.logger.Info("Ignoring missing property source", "location", resolved)
				continue
			}
			return err
		}
		r.addPropertySource(ps)
	}
	return nil
}

// addPropertySource inserts a declared source into the environment. A source
// with an already seen name is layered on top of the previous one as a
// composite; otherwise the new source lands just above the previously added
// one, and the very first goes to the lowest priority.
func (r *Resolver) addPropertySource(ps PropertySource) {
	name := ps.Name()
	for _, seen := range r.propertySourceNames {
		if seen != name {
			continue
		}
		existing := r.environment.Source(name)
		if existing == nil {
			break
		}
		if composite, ok := existing.(*CompositePropertySource); ok {
			composite.AddFirst(ps)
			return
		}
		composite := NewCompositePropertySource(name)
		composite.Add(ps)
		composite.Add(existing)
		r.environment.Replace(name, composite)
		return
	}
	if len(r.propertySourceNames) == 0 {
		r.environment.AddLast(ps)
	} else {
		r.environment.AddBefore(r.propertySourceNames[len(r.propertySourceNames)-1], ps)
	}
	r.propertySourceNames = append(r.propertySourceNames, name)
}

// collectImports gathers import directives declared directly on the type and
// transitively through its meta-annotations, deduplicated in discovery order.
func (r *Resolver) collectImports(md *TypeMetadata) ([]string, error) {
	var imports []string
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	r.doCollectImports(md, &imports, seen, visited)
	return imports, nil
}

func (r *Resolver) doCollectImports(md *TypeMetadata, imports *[]string, seen, visited map[string]bool) {
	if visited[md.ClassName] {
		return
	}
	visited[md.ClassName] = true
	for _, ann := range md.Annotations {
		if ann.Type == AnnotationImport || isBuiltinAnnotation(ann.Type) {
			continue
		}
		if annMD, err := r.accessor.ReadMetadata(ann.Type); err == nil {
			r.doCollectImports(annMD, imports, seen, visited)
		}
	}
	for _, ann := range md.AnnotationsOf(AnnotationImport) {
		for _, name := range ann.Strings("value") {
			if !seen[name] {
				seen[name] = true
				*imports = append(*imports, name)
			}
		}
	}
}

// processImports expands one batch of import targets on behalf of src.
// currentMD is the metadata the directives were found on (the declaring
// type, which may be a superclass of src).
func (r *Resolver) processImports(src *ComponentSource, currentMD *TypeMetadata, importClassNames []string, checkCircular bool) error {
	if len(importClassNames) == 0 {
		return nil
	}
	if checkCircular && r.isChainedImportOnStack(src) {
		return r.circularImportError(src)
	}
	r.push(src)
	defer r.pop()

	for _, className := range importClassNames {
		imd, err := r.accessor.ReadMetadata(className)
		if err != nil {
			return fmt.Errorf("resolving import %s of %s: %w", className, src.ClassName(), err)
		}
		kind, instance := resolveImportKind(imd)
		switch kind {
		case importSelector:
			applyAware(instance, r.environment, r.loader, r.registry, r.logger)
			selector := instance.(ImportSelector)
			if ds, ok := selector.(DeferredImportSelector); ok && r.deferred != nil {
				r.deferred = append(r.deferred, &deferredImport{source: src, metadata: currentMD, selector: ds})
				continue
			}
			selected := selector.SelectImports(currentMD)
			if err := r.processImports(src, currentMD, selected, false); err != nil {
				return err
			}
		case importRegistrar:
			applyAware(instance, r.environment, r.loader, r.registry, r.logger)
			src.AddRegistrar(instance.(DefinitionRegistrar), currentMD)
		default:
			r.tracker.RegisterImport(currentMD, className)
			if err := r.processSource(newImportedSource(imd, src)); err != nil {
				return err
			}
		}
	}
	return nil
}

// processInterfaces folds non-abstract factory methods declared on
// implemented interfaces into the source, recursively.
func (r *Resolver) processInterfaces(src *ComponentSource, md *TypeMetadata) error {
	for _, ifaceName := range md.InterfaceNames {
		if isBuiltinType(ifaceName) {
			continue
		}
		ifaceMD, err := r.accessor.ReadMetadata(ifaceName)
		if err != nil {
			return fmt.Errorf("resolving interface of %s: %w", md.ClassName, err)
		}
		for _, m := range retrieveFactoryMethods(ifaceMD) {
			if !m.Abstract {
				src.AddFactoryMethod(m)
			}
		}
		if err := r.processInterfaces(src, ifaceMD); err != nil {
			return err
		}
	}
	return nil
}

// retrieveFactoryMethods enumerates the type's factory-annotated methods in
// reconciled declaration order.
func retrieveFactoryMethods(md *TypeMetadata) []MethodMetadata {
	var methods []MethodMetadata
	for _, m := range md.Methods {
		if _, ok := m.Annotation(AnnotationFactory); ok {
			if m.DeclaringClassName == "" {
				m.DeclaringClassName = md.ClassName
			}
			methods = append(methods, m)
		}
	}
	return reconcileMethodOrder(methods, md.MethodOrder)
}

func (r *Resolver) push(src *ComponentSource) { r.importStack = append(r.importStack, src) }

func (r *Resolver) pop() { r.importStack = r.importStack[:len(r.importStack)-1] }

func (r *Resolver) isOnStack(className string) bool {
	for _, s := range r.importStack {
		if s.ClassName() == className {
			return true
		}
	}
	return false
}

// isChainedImportOnStack reports whether src closes an import cycle: it is
// already on the stack and the imported-by chain recorded by the tracker
// leads back to it.
func (r *Resolver) isChainedImportOnStack(src *ComponentSource) bool {
	if !r.isOnStack(src.ClassName()) {
		return false
	}
	className := src.ClassName()
	importing := r.tracker.ImportingClassFor(className)
	for importing != nil {
		if importing.ClassName == className {
			return true
		}
		importing = r.tracker.ImportingClassFor(importing.ClassName)
	}
	return false
}

func (r *Resolver) circularImportError(src *ComponentSource) error {
	chain := make([]string, 0, len(r.importStack)+1)
	for _, s := range r.importStack {
		chain = append(chain, s.ClassName())
	}
	chain = append(chain, src.ClassName())
	return fmt.Errorf("%w: %s", ErrCircularImport, strings.Join(chain, " -> "))
}

// ImportTracker records which metadata imported which class, exposed so the
// definition reader can prune the record when an importing source is skipped
// and so components can later ask who imported them.
type ImportTracker struct {
	// importedClass -> importing metadata, in registration order.
	imports map[string][]*TypeMetadata
}

// NewImportTracker creates an empty tracker.
func NewImportTracker() *ImportTracker {
	return &ImportTracker{imports: make(map[string][]*TypeMetadata)}
}

// RegisterImport records that importing pulled importedClass into the graph.
func (t *ImportTracker) RegisterImport(importing *TypeMetadata, importedClass string) {
	t.imports[importedClass] = append(t.imports[importedClass], importing)
}

// ImportingClassFor returns the most recent importer of the class, or nil.
func (t *ImportTracker) ImportingClassFor(importedClass string) *TypeMetadata {
	entries := t.imports[importedClass]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// AllImportersOf returns every recorded importer of the class.
func (t *ImportTracker) AllImportersOf(importedClass string) []*TypeMetadata {
	return t.imports[importedClass]
}

// RemoveImportingClass erases every record made by the given importing
// class, used when that class is pruned at register phase.
func (t *ImportTracker) RemoveImportingClass(importingClass string) {
	for imported, entries := range t.imports {
		kept := entries[:0]
		for _, e := range entries {
			if e.ClassName != importingClass {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(t.imports, imported)
		} else {
			t.imports[imported] = kept
		}
	}
}
