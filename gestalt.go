// Package gestalt resolves declarative component sources into a flat,
// deterministic registry of component definitions ready for instantiation.
//
// A component source is a metadata-described type that may declare factory
// methods, import other sources (directly or through selectors and
// registrars), attach property sources to the environment, and pull in
// externally formatted definition documents. The engine expands one or more
// root sources into a closed resolved graph, applying conditional pruning,
// deferred import grouping, and cycle detection, and then emits concrete
// definitions into a registry under an explicit override-conflict policy.
//
// Basic usage:
//
//	accessor := gestalt.NewStaticMetadataAccessor()
//	// ... register TypeMetadata for the application's sources ...
//	factory := gestalt.NewComponentFactory(logger)
//	factory.Put("appConfig", gestalt.NewSourceCandidateDefinition("appConfig", md))
//	orch := gestalt.NewOrchestrator(logger)
//	err := orch.RunRegistryExtensions(factory, gestalt.NewSourceProcessor(accessor, env, logger))
//
// Component instantiation, dependency injection of constructed instances and
// classpath-style scanning are collaborator concerns and stay outside this
// package.
package gestalt

// Phase identifies the resolution phase a conditional is evaluated in.
// Conditions may choose to only apply during one of the two phases.
type Phase int

const (
	// PhaseParse is evaluated while the declaration graph is being expanded.
	// A source skipped at parse time contributes nothing to the graph.
	PhaseParse Phase = iota

	// PhaseRegister is evaluated while definitions are emitted into the
	// registry. A source skipped at register time has any previously
	// registered definition removed again.
	PhaseRegister
)

func (p Phase) String() string {
	if p == PhaseParse {
		return "parse"
	}
	return "register"
}

// MetadataAccessor yields type metadata by qualified name without requiring
// the described type to be loaded or executed. It is the leaf collaborator
// every other part of the engine reads through.
type MetadataAccessor interface {
	// ReadMetadata returns the metadata registered for the given qualified
	// name, or an error wrapping ErrMetadataNotFound.
	ReadMetadata(name string) (*TypeMetadata, error)
}

// Condition gates the inclusion of a source or factory method. Conditions
// are attached through the "conditional" annotation and evaluated against
// the current environment and registry.
type Condition interface {
	// Matches reports whether the annotated declaration should be included.
	Matches(ctx ConditionContext) bool
}

// PhasedCondition is an optional extension of Condition that restricts
// evaluation to a single resolution phase. Conditions without a phase are
// evaluated in both.
type PhasedCondition interface {
	Condition
	ConditionPhase() Phase
}

// ConditionContext carries the collaborators a Condition may consult.
type ConditionContext struct {
	Registry    DefinitionRegistry
	Environment *Environment
}

// ConditionEvaluator decides whether a declaration should be skipped at a
// given phase based on its annotation metadata.
type ConditionEvaluator interface {
	ShouldSkip(annotated Annotated, phase Phase) bool
}

// Annotated is anything carrying an annotation set: type metadata or method
// metadata.
type Annotated interface {
	AnnotationSet() []Annotation
}

// conditionEvaluator is the standard ConditionEvaluator. It inspects the
// "conditional" annotation and evaluates every attached Condition, skipping
// the declaration as soon as one does not match.
type conditionEvaluator struct {
	ctx ConditionContext
}

// NewConditionEvaluator creates the standard evaluator over the given
// registry and environment.
func NewConditionEvaluator(registry DefinitionRegistry, env *Environment) ConditionEvaluator {
	return &conditionEvaluator{ctx: ConditionContext{Registry: registry, Environment: env}}
}

func (ce *conditionEvaluator) ShouldSkip(annotated Annotated, phase Phase) bool {
	if annotated == nil {
		return false
	}
	for _, ann := range annotated.AnnotationSet() {
		if ann.Type != AnnotationConditional {
			continue
		}
		for _, cond := range ann.Conditions() {
			if pc, ok := cond.(PhasedCondition); ok && pc.ConditionPhase() != phase {
				continue
			}
			if !cond.Matches(ce.ctx) {
				return true
			}
		}
	}
	return false
}
