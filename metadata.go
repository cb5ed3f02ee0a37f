package gestalt

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Well-known annotation types understood by the engine. Annotation types
// outside this set may be registered with their own metadata and act as
// meta-annotations (their metadata can in turn carry import directives).
const (
	// AnnotationComponent marks a type as a component source.
	// Attributes: "name" (string, optional explicit component name).
	AnnotationComponent = "component"

	// AnnotationImport pulls further sources into the graph.
	// Attributes: "value" ([]string of qualified class names).
	AnnotationImport = "import"

	// AnnotationImportResource attaches externally formatted definition
	// documents. Attributes: "locations" ([]string), "format" (string,
	// optional reader hint).
	AnnotationImportResource = "importresource"

	// AnnotationPropertySource contributes a key/value source to the
	// environment. Attributes: "name" (string), "locations" ([]string),
	// "format" (string), "ignoreNotFound" (bool).
	AnnotationPropertySource = "propertysource"

	// AnnotationFactory marks a method as producing a component.
	// Attributes: "name" ([]string, first entry is the definition name,
	// the rest become aliases), "initMethod", "destroyMethod" (string),
	// "autowire" (string).
	AnnotationFactory = "factory"

	// AnnotationScope sets the scope of an emitted definition.
	// Attributes: "value" (string), "proxy" (bool).
	AnnotationScope = "scope"

	// AnnotationConditional gates inclusion of a source or method.
	// Attributes: "value" (Condition or []Condition).
	AnnotationConditional = "conditional"

	// AnnotationOrder assigns an explicit precedence.
	// Attributes: "value" (int, lower runs first).
	AnnotationOrder = "order"
)

// builtinTypePrefixes identify platform types: the superclass walk
// short-circuits on them and annotation recursion never descends into them.
var builtinTypePrefixes = []string{"go.", "builtin."}

func isBuiltinType(name string) bool {
	for _, p := range builtinTypePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func isBuiltinAnnotation(annType string) bool {
	switch annType {
	case AnnotationComponent, AnnotationImport, AnnotationImportResource,
		AnnotationPropertySource, AnnotationFactory, AnnotationScope,
		AnnotationConditional, AnnotationOrder:
		return true
	}
	return isBuiltinType(annType)
}

// Annotation is one annotation occurrence with its attribute values.
type Annotation struct {
	Type       string
	Attributes map[string]any
}

// String returns the named attribute as a string, or "" when absent.
func (a Annotation) String(attr string) string {
	if v, ok := a.Attributes[attr].(string); ok {
		return v
	}
	return ""
}

// Strings returns the named attribute as a string slice. A single string
// value is promoted to a one-element slice.
func (a Annotation) Strings(attr string) []string {
	switch v := a.Attributes[attr].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	}
	return nil
}

// Bool returns the named attribute as a bool, or false when absent.
func (a Annotation) Bool(attr string) bool {
	if v, ok := a.Attributes[attr].(bool); ok {
		return v
	}
	return false
}

// Int returns the named attribute as an int along with presence.
func (a Annotation) Int(attr string) (int, bool) {
	if v, ok := a.Attributes[attr].(int); ok {
		return v, true
	}
	return 0, false
}

// Conditions returns the Condition values attached to a conditional
// annotation's "value" attribute.
func (a Annotation) Conditions() []Condition {
	switch v := a.Attributes["value"].(type) {
	case Condition:
		return []Condition{v}
	case []Condition:
		return v
	}
	return nil
}

// TypeMetadata describes one type: its annotations, structure and an
// optional constructor. It is what the MetadataAccessor yields and must be
// obtainable without executing the described type.
type TypeMetadata struct {
	// ClassName is the qualified name, the identity of the type.
	ClassName string

	// Annotations declared directly on the type.
	Annotations []Annotation

	// SuperclassName is empty for root types.
	SuperclassName string

	// InterfaceNames lists implemented interfaces by qualified name.
	InterfaceNames []string

	// Methods as enumerated reflectively. Order is untrusted; see
	// MethodOrder.
	Methods []MethodMetadata

	// MethodOrder optionally carries the stable declaration order of method
	// names as recovered from low-level metadata. Used to reconcile the
	// untrusted reflective order of Methods.
	MethodOrder []string

	// NestedClassNames lists member types declared inside this type.
	NestedClassNames []string

	// New constructs an instance of the described type. Required for
	// selector, registrar and group types; nil for metadata-only sources.
	New func() any
}

// AnnotationSet implements Annotated.
func (m *TypeMetadata) AnnotationSet() []Annotation { return m.Annotations }

// Annotation returns the first annotation of the given type and whether one
// was found.
func (m *TypeMetadata) Annotation(annType string) (Annotation, bool) {
	for _, a := range m.Annotations {
		if a.Type == annType {
			return a, true
		}
	}
	return Annotation{}, false
}

// AnnotationsOf returns every annotation occurrence of the given type, in
// declaration order.
func (m *TypeMetadata) AnnotationsOf(annType string) []Annotation {
	var out []Annotation
	for _, a := range m.Annotations {
		if a.Type == annType {
			out = append(out, a)
		}
	}
	return out
}

// Order returns the explicit order annotation value, or LowestPrecedence.
func (m *TypeMetadata) Order() int {
	if ann, ok := m.Annotation(AnnotationOrder); ok {
		if v, ok := ann.Int("value"); ok {
			return v
		}
	}
	return LowestPrecedence
}

// IsComponentCandidate reports whether the type looks like a component
// source: it carries a component annotation, declares imports, resources or
// property sources, or has at least one factory method.
func (m *TypeMetadata) IsComponentCandidate() bool {
	for _, a := range m.Annotations {
		switch a.Type {
		case AnnotationComponent, AnnotationImport, AnnotationImportResource, AnnotationPropertySource:
			return true
		}
	}
	for _, meth := range m.Methods {
		if _, ok := meth.Annotation(AnnotationFactory); ok {
			return true
		}
	}
	return false
}

// MethodMetadata describes one declared method.
type MethodMetadata struct {
	Name               string
	DeclaringClassName string
	Static             bool
	Abstract           bool
	Annotations        []Annotation
}

// AnnotationSet implements Annotated.
func (m MethodMetadata) AnnotationSet() []Annotation { return m.Annotations }

// Annotation returns the first annotation of the given type.
func (m MethodMetadata) Annotation(annType string) (Annotation, bool) {
	for _, a := range m.Annotations {
		if a.Type == annType {
			return a, true
		}
	}
	return Annotation{}, false
}

// StaticMetadataAccessor is an in-memory MetadataAccessor. Metadata is
// registered up front (typically by generated code or test fixtures) and
// looked up by qualified name.
type StaticMetadataAccessor struct {
	mu    sync.RWMutex
	types map[string]*TypeMetadata
}

// NewStaticMetadataAccessor creates an empty accessor.
func NewStaticMetadataAccessor() *StaticMetadataAccessor {
	return &StaticMetadataAccessor{types: make(map[string]*TypeMetadata)}
}

// Register adds metadata under its class name, replacing any previous entry.
func (s *StaticMetadataAccessor) Register(md *TypeMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[md.ClassName] = md
}

// ReadMetadata implements MetadataAccessor.
func (s *StaticMetadataAccessor) ReadMetadata(name string) (*TypeMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMetadataNotFound, name)
	}
	return md, nil
}

// Names returns all registered class names, sorted. Intended for debugging.
func (s *StaticMetadataAccessor) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
