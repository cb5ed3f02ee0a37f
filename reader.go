package gestalt

import (
	"fmt"
	"strings"
	"unicode"
)

// DefinitionReader walks a resolved graph and emits concrete definitions
// into the registry: one per imported source, one per factory method, plus
// whatever imported resource documents and registrars contribute.
type DefinitionReader struct {
	registry    DefinitionRegistry
	evaluator   ConditionEvaluator
	environment *Environment
	loader      ResourceLoader
	readerFor   ReaderFor
	tracker     *ImportTracker
	logger      Logger
}

// NewDefinitionReader creates a reader over the given collaborators. The
// tracker must be the one the resolver recorded imports into.
func NewDefinitionReader(registry DefinitionRegistry, evaluator ConditionEvaluator, env *Environment,
	loader ResourceLoader, readerFor ReaderFor, tracker *ImportTracker, logger Logger) *DefinitionReader {
	if tracker == nil {
		tracker = NewImportTracker()
	}
	return &DefinitionReader{
		registry:    registry,
		evaluator:   evaluator,
		environment: env,
		loader:      loader,
		readerFor:   readerFor,
		tracker:     tracker,
		logger:      ensureLogger(logger),
	}
}

// Emit emits definitions for every source in the graph, in resolution order.
func (r *DefinitionReader) Emit(graph *ResolvedGraph) error {
	return r.EmitSources(graph.Sources())
}

// EmitSources emits definitions for the given sources. Register-phase
// conditions are re-evaluated here; a freshly skipped source has its own
// definition removed again and its import records erased.
func (r *DefinitionReader) EmitSources(sources []*ComponentSource) error {
	skip := newTrackedSkip(r.evaluator)
	// Resource readers are constructed once per emission pass.
	readers := make(map[string]ResourceReader)
	for _, src := range sources {
		if err := r.emitSource(src, skip, readers); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefinitionReader) emitSource(src *ComponentSource, skip *trackedSkip, readers map[string]ResourceReader) error {
	if skip.shouldSkip(src) {
		if name := src.ComponentName(); name != "" && r.registry.Has(name) {
			if err := r.registry.Remove(name); err != nil {
				return err
			}
		}
		r.tracker.RemoveImportingClass(src.ClassName())
		return nil
	}

	if src.IsImported() {
		if err := r.emitImportedSourceDefinition(src); err != nil {
			return err
		}
	}
	for _, fm := range src.FactoryMethods() {
		if err := r.emitFactoryMethod(fm); err != nil {
			return err
		}
	}
	if err := r.loadImportedResources(src, readers); err != nil {
		return err
	}
	return r.invokeRegistrars(src)
}

// emitImportedSourceDefinition registers the imported source itself as a
// component, under an explicit or generated name.
func (r *DefinitionReader) emitImportedSourceDefinition(src *ComponentSource) error {
	md := src.Metadata()
	name := ""
	if ann, ok := md.Annotation(AnnotationComponent); ok {
		name = ann.String("name")
	}
	if name == "" {
		name = defaultComponentName(md.ClassName)
	}

	def := NewDefinition(name)
	def.ClassName = md.ClassName
	def.Metadata = md
	def.Provenance = ProvenanceGraph
	def.AutowireMode = AutowireConstructor
	applyScope(def, md)
	// The source was just resolved; a later candidate scan must not take it
	// up again.
	def.SetAttribute(attrSourceProcessed, true)

	if err := r.register(name, def); err != nil {
		return err
	}
	src.setComponentName(name)
	r.logger.Debug("Registered imported component source", "name", name, "class", md.ClassName)
	return nil
}

func (r *DefinitionReader) emitFactoryMethod(fm *FactoryMethod) error {
	src := fm.Source
	m := fm.Method

	if r.evaluator.ShouldSkip(m, PhaseRegister) {
		src.markMethodSkipped(m.Name)
		return nil
	}
	if src.isMethodSkipped(m.Name) {
		return nil
	}

	ann, _ := m.Annotation(AnnotationFactory)
	names := ann.Strings("name")
	name := m.Name
	var aliases []string
	if len(names) > 0 {
		name = names[0]
		aliases = names[1:]
	}

	// Aliases are bound even when the definition itself yields to an
	// existing one.
	for _, alias := range aliases {
		if err := r.registry.RegisterAlias(name, alias); err != nil {
			return err
		}
	}

	overridden, err := r.isOverriddenByExisting(fm, name)
	if err != nil {
		return err
	}
	if overridden {
		if name == src.ComponentName() {
			return fmt.Errorf("%w: factory method %s.%s produces %q, the name of its own declaring component",
				ErrFactoryNameCollision, src.ClassName(), m.Name, name)
		}
		return nil
	}

	def := NewDefinition(name)
	def.Aliases = aliases
	def.Metadata = src.Metadata()
	def.Provenance = ProvenanceGraph
	def.DeclaringClassName = src.ClassName()
	def.FactoryMethodName = m.Name
	if m.Static {
		def.FactoryClassName = src.ClassName()
	} else {
		def.FactoryComponent = src.ComponentName()
	}

	def.AutowireMode = AutowireConstructor
	switch ann.String("autowire") {
	case "byname":
		def.AutowireMode = AutowireByName
	case "bytype":
		def.AutowireMode = AutowireByType
	}
	def.InitMethod = ann.String("initMethod")
	def.DestroyMethod = ann.String("destroyMethod")
	applyMethodScope(def, m)

	if err := r.register(name, def); err != nil {
		return err
	}
	r.logger.Debug("Registered factory method definition", "name", name, "method", src.ClassName()+"."+m.Name)
	return nil
}

// isOverriddenByExisting runs the override checklist against an existing
// definition of the same name, in order:
//
//  1. existing emitted from a factory method: same declaring class means an
//     overload, the existing definition wins; a different class is replaced.
//  2. scan-derived existing: replaced silently.
//  3. non-application role: replaced.
//  4. otherwise the existing definition is an explicit one. Replacing it is
//     an error when the registry disallows overriding, else the existing
//     definition is kept and the skip is surfaced as an override notice.
func (r *DefinitionReader) isOverriddenByExisting(fm *FactoryMethod, name string) (bool, error) {
	if !r.registry.Has(name) {
		return false, nil
	}
	existing, err := r.registry.Get(name)
	if err != nil {
		return false, err
	}

	if existing.IsGraphDerived() && existing.DeclaringClassName != "" {
		return existing.DeclaringClassName == fm.Source.ClassName(), nil
	}
	if existing.Provenance == ProvenanceScanned {
		r.logger.Debug("Replacing scan-derived definition", "name", name)
		return false, nil
	}
	if existing.Role > RoleApplication {
		return false, nil
	}
	if !r.registry.AllowOverride() {
		return false, fmt.Errorf("%w: factory method %s.%s conflicts with existing definition %q",
			ErrOverrideDisallowed, fm.Source.ClassName(), fm.Method.Name, name)
	}
	r.logger.Info("Skipping definition for factory method: an explicit definition with the same name exists and overrides it",
		"name", name, "method", fm.Source.ClassName()+"."+fm.Method.Name)
	return true, nil
}

// register stores the definition, splitting it into a hidden target plus a
// proxy definition when a scoped proxy was requested.
func (r *DefinitionReader) register(name string, def *Definition) error {
	if !def.ScopedProxy {
		return r.registry.Put(name, def)
	}
	targetName := scopedTargetPrefix + name
	target := def.Clone()
	target.Name = targetName
	target.ScopedProxy = false

	proxy := NewDefinition(name)
	proxy.ClassName = def.ClassName
	proxy.Metadata = def.Metadata
	proxy.Provenance = def.Provenance
	proxy.Role = def.Role
	proxy.ProxyTargetName = targetName
	if err := r.registry.Put(targetName, target); err != nil {
		return err
	}
	return r.registry.Put(name, proxy)
}

func (r *DefinitionReader) loadImportedResources(src *ComponentSource, readers map[string]ResourceReader) error {
	for _, res := range src.ImportedResources() {
		format := InferFormat(res.Location, res.Format)
		reader, ok := readers[format]
		if !ok {
			if r.readerFor == nil {
				return fmt.Errorf("%w: %s", ErrNoReaderForFormat, format)
			}
			var err error
			reader, err = r.readerFor(format)
			if err != nil {
				return err
			}
			readers[format] = reader
		}
		if err := reader.Load(res.Location, r.registry); err != nil {
			return fmt.Errorf("loading resource %s imported by %s: %w", res.Location, src.ClassName(), err)
		}
	}
	return nil
}

func (r *DefinitionReader) invokeRegistrars(src *ComponentSource) error {
	for _, entry := range src.Registrars() {
		if err := entry.Registrar.RegisterDefinitions(entry.Metadata, r.registry); err != nil {
			return fmt.Errorf("registrar imported by %s: %w", src.ClassName(), err)
		}
	}
	return nil
}

// trackedSkip memoizes register-phase skip decisions per source. A source
// imported exclusively by skipped sources is itself skipped regardless of
// its own conditions.
type trackedSkip struct {
	evaluator ConditionEvaluator
	memo      map[*ComponentSource]bool
}

func newTrackedSkip(evaluator ConditionEvaluator) *trackedSkip {
	return &trackedSkip{evaluator: evaluator, memo: make(map[*ComponentSource]bool)}
}

func (t *trackedSkip) shouldSkip(src *ComponentSource) bool {
	if skip, ok := t.memo[src]; ok {
		return skip
	}
	skip := false
	decided := false
	if src.IsImported() {
		allSkipped := true
		for _, importer := range src.ImportedBy() {
			if !t.shouldSkip(importer) {
				allSkipped = false
				break
			}
		}
		if allSkipped {
			skip = true
			decided = true
		}
	}
	if !decided {
		skip = t.evaluator.ShouldSkip(src.Metadata(), PhaseRegister)
	}
	t.memo[src] = skip
	return skip
}

// defaultComponentName derives a definition name from a qualified class
// name: the last segment with its first rune lowercased.
func defaultComponentName(className string) string {
	simple := className
	if i := strings.LastIndex(className, "."); i >= 0 {
		simple = className[i+1:]
	}
	if simple == "" {
		return className
	}
	runes := []rune(simple)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

func applyScope(def *Definition, md *TypeMetadata) {
	if ann, ok := md.Annotation(AnnotationScope); ok {
		if v := ann.String("value"); v != "" {
			def.Scope = v
		}
		def.ScopedProxy = ann.Bool("proxy")
	}
}

func applyMethodScope(def *Definition, m MethodMetadata) {
	if ann, ok := m.Annotation(AnnotationScope); ok {
		if v := ann.String("value"); v != "" {
			def.Scope = v
		}
		def.ScopedProxy = ann.Bool("proxy")
	}
}
