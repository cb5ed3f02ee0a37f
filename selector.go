package gestalt

// ImportSelector computes further class names to import on behalf of the
// source whose import directive referenced it. The selector type itself is
// never treated as a component source.
type ImportSelector interface {
	SelectImports(importing *TypeMetadata) []string
}

// DeferredImportSelector is an ImportSelector resolved only after the main
// graph pass completes. Selectors sharing a non-empty group key are merged
// into one group so they can see each other's output before any of it is
// expanded.
type DeferredImportSelector interface {
	ImportSelector

	// GroupKey names the deferred group. Empty means an isolated default
	// group that simply forwards the selector's own result list.
	GroupKey() string
}

// GroupSupplier is an optional capability of a DeferredImportSelector that
// supplies a custom group implementation. The first selector of a group key
// that implements it wins.
type GroupSupplier interface {
	NewGroup() Group
}

// DefinitionRegistrar registers definitions directly instead of being a
// component source itself. Registrars recorded during graph resolution are
// invoked by the definition reader with the metadata of the importing
// source.
type DefinitionRegistrar interface {
	RegisterDefinitions(importing *TypeMetadata, registry DefinitionRegistry) error
}

// Context-aware construction capabilities. After instantiating a selector,
// registrar or group, the resolver probes it for each capability and
// injects the matching collaborator.
type (
	// EnvironmentAware receives the environment under resolution.
	EnvironmentAware interface {
		SetEnvironment(env *Environment)
	}

	// ResourceLoaderAware receives the resource loader.
	ResourceLoaderAware interface {
		SetResourceLoader(loader ResourceLoader)
	}

	// RegistryAware receives the registry under mutation.
	RegistryAware interface {
		SetRegistry(registry DefinitionRegistry)
	}

	// LoggerAware receives the engine logger.
	LoggerAware interface {
		SetLogger(logger Logger)
	}
)

// importKind is the closed variant an import target resolves to, probed
// once per occurrence.
type importKind int

const (
	importPlainSource importKind = iota
	importSelector
	importRegistrar
)

// resolveImportKind probes what an imported type is. Types without a
// constructor are plain sources by definition; constructed instances are
// classified by capability.
func resolveImportKind(md *TypeMetadata) (importKind, any) {
	if md.New == nil {
		return importPlainSource, nil
	}
	instance := md.New()
	switch instance.(type) {
	case ImportSelector:
		return importSelector, instance
	case DefinitionRegistrar:
		return importRegistrar, instance
	default:
		return importPlainSource, nil
	}
}

// applyAware injects every supported collaborator the instance asks for.
func applyAware(instance any, env *Environment, loader ResourceLoader, registry DefinitionRegistry, logger Logger) {
	if aware, ok := instance.(EnvironmentAware); ok {
		aware.SetEnvironment(env)
	}
	if aware, ok := instance.(ResourceLoaderAware); ok {
		aware.SetResourceLoader(loader)
	}
	if aware, ok := instance.(RegistryAware); ok {
		aware.SetRegistry(registry)
	}
	if aware, ok := instance.(LoggerAware); ok {
		aware.SetLogger(logger)
	}
}
