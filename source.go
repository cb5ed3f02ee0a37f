package gestalt

import (
	"fmt"
)

// ComponentSource is one resolved graph node: a metadata-described type that
// contributes definitions. Identity is the qualified class name; accumulated
// state (imported-by references, factory methods, resources, registrars)
// mutates during resolution and is read by the definition reader afterwards.
type ComponentSource struct {
	metadata      *TypeMetadata
	componentName string

	// importedBy holds back-references to every source that imported this
	// one. Empty for root/explicit sources.
	importedBy []*ComponentSource

	factoryMethods    []*FactoryMethod
	importedResources []ResourceImport
	registrars        []RegistrarEntry

	// skippedMethods remembers factory methods pruned at register phase so
	// repeated emission passes do not reconsider them.
	skippedMethods map[string]bool
}

// FactoryMethod pairs a factory-annotated method with the source it belongs
// to. Methods inherited from superclasses and interface defaults are folded
// into the declaring source's node.
type FactoryMethod struct {
	Method MethodMetadata
	Source *ComponentSource
}

// ResourceImport is a pending externally formatted definition document.
type ResourceImport struct {
	Location string
	Format   string
}

// RegistrarEntry pairs a registrar callback with the metadata of the source
// whose import directive produced it.
type RegistrarEntry struct {
	Registrar DefinitionRegistrar
	Metadata  *TypeMetadata
}

// NewComponentSource creates a root (explicitly supplied) source node.
func NewComponentSource(md *TypeMetadata, componentName string) *ComponentSource {
	return &ComponentSource{
		metadata:       md,
		componentName:  componentName,
		skippedMethods: make(map[string]bool),
	}
}

// newImportedSource creates a node reached through an import edge.
func newImportedSource(md *TypeMetadata, importedBy *ComponentSource) *ComponentSource {
	s := NewComponentSource(md, "")
	s.importedBy = append(s.importedBy, importedBy)
	return s
}

// ClassName returns the node's identity.
func (s *ComponentSource) ClassName() string { return s.metadata.ClassName }

// Metadata returns the node's type metadata.
func (s *ComponentSource) Metadata() *TypeMetadata { return s.metadata }

// ComponentName returns the explicit registered name, or "" for imported
// sources until the reader generates one.
func (s *ComponentSource) ComponentName() string { return s.componentName }

// setComponentName is called by the reader once an imported source gets its
// generated definition name.
func (s *ComponentSource) setComponentName(name string) { s.componentName = name }

// IsImported reports whether this node was only ever reached via import
// edges.
func (s *ComponentSource) IsImported() bool { return len(s.importedBy) > 0 }

// ImportedBy returns the importing sources.
func (s *ComponentSource) ImportedBy() []*ComponentSource { return s.importedBy }

// mergeImportedBy folds another occurrence's back-references into this node.
func (s *ComponentSource) mergeImportedBy(other *ComponentSource) {
	for _, imp := range other.importedBy {
		if !s.isImportedBy(imp) {
			s.importedBy = append(s.importedBy, imp)
		}
	}
}

func (s *ComponentSource) isImportedBy(candidate *ComponentSource) bool {
	for _, imp := range s.importedBy {
		if imp == candidate {
			return true
		}
	}
	return false
}

// AddFactoryMethod appends a factory-method declaration.
func (s *ComponentSource) AddFactoryMethod(m MethodMetadata) {
	s.factoryMethods = append(s.factoryMethods, &FactoryMethod{Method: m, Source: s})
}

// FactoryMethods returns the collected factory-method declarations.
func (s *ComponentSource) FactoryMethods() []*FactoryMethod { return s.factoryMethods }

// AddImportedResource records an externally formatted document to load.
func (s *ComponentSource) AddImportedResource(location, format string) {
	s.importedResources = append(s.importedResources, ResourceImport{Location: location, Format: format})
}

// ImportedResources returns the recorded resource imports in declaration
// order.
func (s *ComponentSource) ImportedResources() []ResourceImport { return s.importedResources }

// AddRegistrar records a registrar callback for later invocation by the
// definition reader.
func (s *ComponentSource) AddRegistrar(r DefinitionRegistrar, triggering *TypeMetadata) {
	s.registrars = append(s.registrars, RegistrarEntry{Registrar: r, Metadata: triggering})
}

// Registrars returns the recorded registrar callbacks.
func (s *ComponentSource) Registrars() []RegistrarEntry { return s.registrars }

func (s *ComponentSource) markMethodSkipped(name string) { s.skippedMethods[name] = true }

func (s *ComponentSource) isMethodSkipped(name string) bool { return s.skippedMethods[name] }

// Validate performs structural checks on the finished node.
func (s *ComponentSource) Validate() error {
	for _, fm := range s.factoryMethods {
		if fm.Method.Name == "" {
			return fmt.Errorf("%w: factory method on %s has no name", ErrMalformedDirective, s.ClassName())
		}
		if fm.Method.Abstract {
			return fmt.Errorf("%w: factory method %s.%s is abstract", ErrMalformedDirective, s.ClassName(), fm.Method.Name)
		}
	}
	return nil
}

func (s *ComponentSource) String() string { return s.ClassName() }

// ResolvedGraph is the ordered set of resolved component sources, keyed by
// class name. Insertion order is resolution order.
type ResolvedGraph struct {
	nodes map[string]*ComponentSource
	order []string
}

func newResolvedGraph() *ResolvedGraph {
	return &ResolvedGraph{nodes: make(map[string]*ComponentSource)}
}

func (g *ResolvedGraph) get(className string) *ComponentSource { return g.nodes[className] }

func (g *ResolvedGraph) put(s *ComponentSource) {
	if _, exists := g.nodes[s.ClassName()]; !exists {
		g.order = append(g.order, s.ClassName())
	}
	g.nodes[s.ClassName()] = s
}

func (g *ResolvedGraph) remove(className string) {
	if _, exists := g.nodes[className]; !exists {
		return
	}
	delete(g.nodes, className)
	for i, n := range g.order {
		if n == className {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Sources returns the resolved nodes in resolution order.
func (g *ResolvedGraph) Sources() []*ComponentSource {
	out := make([]*ComponentSource, 0, len(g.order))
	for _, n := range g.order {
		out = append(out, g.nodes[n])
	}
	return out
}

// Len returns the number of resolved nodes.
func (g *ResolvedGraph) Len() int { return len(g.nodes) }
