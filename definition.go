package gestalt

// Provenance tags where a definition came from. The override-conflict
// policy distinguishes graph-derived definitions from scanned and
// explicitly supplied ones.
type Provenance int

const (
	// ProvenanceExternal marks definitions supplied directly by the caller
	// (top-level, explicit registration).
	ProvenanceExternal Provenance = iota

	// ProvenanceScanned marks definitions produced by a scanning
	// collaborator. Scan-derived definitions yield silently to
	// graph-derived ones.
	ProvenanceScanned

	// ProvenanceGraph marks definitions emitted from the resolved
	// declaration graph (factory methods and imported sources).
	ProvenanceGraph
)

// Role classifies a definition for override policy and tooling.
type Role int

const (
	// RoleApplication is a user-facing component.
	RoleApplication Role = iota

	// RoleSupport is part of a larger configuration but not user-facing.
	RoleSupport

	// RoleInfrastructure is purely internal plumbing. Infrastructure
	// definitions are always replaceable by graph-derived ones.
	RoleInfrastructure
)

// AutowireMode selects how the instantiation machinery wires the produced
// component. Graph-derived definitions default to constructor autowiring.
type AutowireMode int

const (
	AutowireNone AutowireMode = iota
	AutowireConstructor
	AutowireByName
	AutowireByType
)

// Scope names understood by default. Further scopes are collaborator-defined.
const (
	ScopeSingleton = "singleton"
	ScopePrototype = "prototype"
)

// scopedTargetPrefix hides the raw definition behind a scoped proxy.
const scopedTargetPrefix = "scopedTarget."

// Definition is the registry-facing artifact describing how to produce one
// component instance. The engine only fills it in; instantiation is a
// collaborator concern.
type Definition struct {
	// Name is the registry key. Aliases are additional names bound to it.
	Name    string
	Aliases []string

	// ClassName is the produced component's type, when known.
	ClassName string

	// Metadata is the annotation metadata of the declaring type, present on
	// component-source candidates and graph-derived definitions.
	Metadata *TypeMetadata

	// Factory shape. Exactly one applies:
	//   static factory:   FactoryClassName + FactoryMethodName
	//   instance factory: FactoryComponent + FactoryMethodName
	//   external:         none of the above (Instance or collaborator-built)
	FactoryClassName  string
	FactoryComponent  string
	FactoryMethodName string

	// DeclaringClassName is the component class whose method produced this
	// definition. Used for overload detection during override checks.
	DeclaringClassName string

	Scope       string
	ScopedProxy bool

	// ProxyTargetName is set on proxy definitions and points at the hidden
	// raw definition the proxy forwards to.
	ProxyTargetName string

	AutowireMode  AutowireMode
	InitMethod    string
	DestroyMethod string

	Role       Role
	Provenance Provenance

	// Order is the explicit precedence of the source candidate, used when
	// sorting candidates before resolution.
	Order int

	// Instance optionally carries a pre-built singleton. Registry-resident
	// extensions and observers are discovered through it.
	Instance any

	attributes map[string]any
}

// NewDefinition creates an empty external definition with the given name.
func NewDefinition(name string) *Definition {
	return &Definition{Name: name, Scope: ScopeSingleton, Order: LowestPrecedence}
}

// NewSourceCandidateDefinition creates an external definition carrying type
// metadata, making it a candidate for component-source resolution.
func NewSourceCandidateDefinition(name string, md *TypeMetadata) *Definition {
	d := NewDefinition(name)
	d.ClassName = md.ClassName
	d.Metadata = md
	d.Order = md.Order()
	return d
}

// NewInstanceDefinition creates an external definition around a pre-built
// instance, typically to plant extensions or observers in the registry.
func NewInstanceDefinition(name string, instance any) *Definition {
	d := NewDefinition(name)
	d.Instance = instance
	d.Order = orderOf(instance)
	return d
}

// IsGraphDerived reports whether this definition was emitted from the
// resolved declaration graph.
func (d *Definition) IsGraphDerived() bool { return d.Provenance == ProvenanceGraph }

// SetAttribute attaches a free-form attribute.
func (d *Definition) SetAttribute(key string, value any) {
	if d.attributes == nil {
		d.attributes = make(map[string]any)
	}
	d.attributes[key] = value
}

// Attribute returns a free-form attribute and whether it is set.
func (d *Definition) Attribute(key string) (any, bool) {
	v, ok := d.attributes[key]
	return v, ok
}

// Clone returns a shallow copy with its own attribute map.
func (d *Definition) Clone() *Definition {
	cp := *d
	cp.Aliases = append([]string(nil), d.Aliases...)
	cp.attributes = make(map[string]any, len(d.attributes))
	for k, v := range d.attributes {
		cp.attributes[k] = v
	}
	return &cp
}
