package gestalt

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
)

// ResolutionBDDTestContext holds state for source resolution BDD tests.
type ResolutionBDDTestContext struct {
	accessor *StaticMetadataAccessor
	factory  *ComponentFactory
	runErr   error
}

func (ctx *ResolutionBDDTestContext) reset() {
	ctx.accessor = NewStaticMetadataAccessor()
	ctx.factory = NewComponentFactory(nil)
	ctx.runErr = nil
}

func (ctx *ResolutionBDDTestContext) aSourceClass(class string) error {
	ctx.accessor.Register(newMD(class, componentAnn("")))
	return nil
}

func (ctx *ResolutionBDDTestContext) metadataOf(class string) (*TypeMetadata, error) {
	md, err := ctx.accessor.ReadMetadata(class)
	if err != nil {
		return nil, fmt.Errorf("source class %q was not declared: %w", class, err)
	}
	return md, nil
}

func (ctx *ResolutionBDDTestContext) declaresAFactoryMethod(class, method string) error {
	md, err := ctx.metadataOf(class)
	if err != nil {
		return err
	}
	md.Methods = append(md.Methods, factoryMethod(method, nil))
	return nil
}

func (ctx *ResolutionBDDTestContext) imports(class, imported string) error {
	md, err := ctx.metadataOf(class)
	if err != nil {
		return err
	}
	md.Annotations = append(md.Annotations, importAnn(imported))
	return nil
}

func (ctx *ResolutionBDDTestContext) isGatedOffAtRegisterPhase(class string) error {
	md, err := ctx.metadataOf(class)
	if err != nil {
		return err
	}
	cond := phasedFixedCondition{fixedCondition{match: false, phase: PhaseRegister}}
	md.Annotations = append(md.Annotations, conditionalAnn(cond))
	return nil
}

func (ctx *ResolutionBDDTestContext) isSuppliedAsARootCandidate(class, name string) error {
	md, err := ctx.metadataOf(class)
	if err != nil {
		return err
	}
	return ctx.factory.Put(name, NewSourceCandidateDefinition(name, md))
}

func (ctx *ResolutionBDDTestContext) anExplicitDefinitionAlreadyExists(name string) error {
	return ctx.factory.Put(name, NewDefinition(name))
}

func (ctx *ResolutionBDDTestContext) definitionOverridingIsDisallowed() error {
	ctx.factory.SetAllowOverride(false)
	return nil
}

func (ctx *ResolutionBDDTestContext) sourceProcessingRuns() error {
	orch := NewOrchestrator(nil)
	ctx.runErr = orch.RunRegistryExtensions(ctx.factory, NewSourceProcessor(ctx.accessor, nil, nil))
	return nil
}

func (ctx *ResolutionBDDTestContext) processingSucceeds() error {
	if ctx.runErr != nil {
		return fmt.Errorf("expected success, got: %w", ctx.runErr)
	}
	return nil
}

func (ctx *ResolutionBDDTestContext) processingFailsWithACircularImportError() error {
	if !errors.Is(ctx.runErr, ErrCircularImport) {
		return fmt.Errorf("expected a circular import error, got: %v", ctx.runErr)
	}
	return nil
}

func (ctx *ResolutionBDDTestContext) processingFailsBecauseOverridingIsDisallowed() error {
	if !errors.Is(ctx.runErr, ErrOverrideDisallowed) {
		return fmt.Errorf("expected an override-disallowed error, got: %v", ctx.runErr)
	}
	return nil
}

func (ctx *ResolutionBDDTestContext) theRegistryContainsADefinitionNamed(name string) error {
	if !ctx.factory.Has(name) {
		return fmt.Errorf("no definition named %q in registry (have %v)", name, ctx.factory.AllNames())
	}
	return nil
}

func (ctx *ResolutionBDDTestContext) theRegistryDoesNotContainADefinitionNamed(name string) error {
	if ctx.factory.Has(name) {
		return fmt.Errorf("unexpected definition named %q in registry", name)
	}
	return nil
}

func (ctx *ResolutionBDDTestContext) theDefinitionIsGraphDerived(name string) error {
	def, err := ctx.factory.Get(name)
	if err != nil {
		return err
	}
	if !def.IsGraphDerived() {
		return fmt.Errorf("definition %q is not graph-derived", name)
	}
	return nil
}

func InitializeResolutionScenario(ctx *godog.ScenarioContext) {
	bddCtx := &ResolutionBDDTestContext{}
	ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
		bddCtx.reset()
		return c, nil
	})

	ctx.Step(`^a source class "([^"]*)"$`, bddCtx.aSourceClass)
	ctx.Step(`^"([^"]*)" declares a factory method "([^"]*)"$`, bddCtx.declaresAFactoryMethod)
	ctx.Step(`^"([^"]*)" imports "([^"]*)"$`, bddCtx.imports)
	ctx.Step(`^"([^"]*)" is gated off at register phase$`, bddCtx.isGatedOffAtRegisterPhase)
	ctx.Step(`^"([^"]*)" is supplied as a root candidate named "([^"]*)"$`, bddCtx.isSuppliedAsARootCandidate)
	ctx.Step(`^an explicit definition named "([^"]*)" already exists$`, bddCtx.anExplicitDefinitionAlreadyExists)
	ctx.Step(`^definition overriding is disallowed$`, bddCtx.definitionOverridingIsDisallowed)
	ctx.Step(`^source processing runs$`, bddCtx.sourceProcessingRuns)
	ctx.Step(`^processing succeeds$`, bddCtx.processingSucceeds)
	ctx.Step(`^processing fails with a circular import error$`, bddCtx.processingFailsWithACircularImportError)
	ctx.Step(`^processing fails because overriding is disallowed$`, bddCtx.processingFailsBecauseOverridingIsDisallowed)
	ctx.Step(`^the registry contains a definition named "([^"]*)"$`, bddCtx.theRegistryContainsADefinitionNamed)
	ctx.Step(`^the registry does not contain a definition named "([^"]*)"$`, bddCtx.theRegistryDoesNotContainADefinitionNamed)
	ctx.Step(`^the definition "([^"]*)" is graph-derived$`, bddCtx.theDefinitionIsGraphDerived)
}

// Test runner
func TestResolutionBDDFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeResolutionScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/resolution.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
