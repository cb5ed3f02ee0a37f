package gestalt

import (
	"errors"
)

// Engine errors
var (
	// Metadata errors
	ErrMetadataNotFound = errors.New("no metadata registered for type")
	ErrNoConstructor    = errors.New("type metadata declares no constructor")

	// Structural errors: fatal, abort the current resolution pass
	ErrCircularImport       = errors.New("circular import detected")
	ErrFactoryNameCollision = errors.New("factory method name clashes with its declaring component name")
	ErrOverrideDisallowed   = errors.New("definition override disallowed by registry")
	ErrMalformedDirective   = errors.New("malformed directive")

	// Property source errors
	ErrPropertySourceUnresolvable = errors.New("property source location not resolvable")
	ErrPlaceholderUnresolvable    = errors.New("placeholder could not be resolved")

	// Registry errors
	ErrDefinitionNotFound  = errors.New("definition not found")
	ErrDefinitionNameEmpty = errors.New("definition name must not be empty")
	ErrAliasNameInUse      = errors.New("alias name already bound to a definition")

	// Usage errors: programmer misuse, fatal
	ErrRegistryAlreadyProcessed = errors.New("registry extensions already ran against this registry")
	ErrFactoryAlreadyProcessed  = errors.New("factory extensions already ran against this factory")

	// Resource reader errors
	ErrNoReaderForFormat = errors.New("no resource reader for format")
	ErrResourceNotFound  = errors.New("resource not found")

	// Observer errors
	ErrObserverNil = errors.New("observer is nil")
)
