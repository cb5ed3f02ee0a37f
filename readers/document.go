package readers

import (
	"fmt"

	"github.com/gestaltframework/gestalt"
)

// document is the shared shape of a definition document across formats.
type document struct {
	Definitions []definitionEntry `yaml:"definitions" toml:"definitions" json:"definitions"`
}

type definitionEntry struct {
	Name          string   `yaml:"name" toml:"name" json:"name"`
	Class         string   `yaml:"class" toml:"class" json:"class"`
	Scope         string   `yaml:"scope" toml:"scope" json:"scope"`
	Aliases       []string `yaml:"aliases" toml:"aliases" json:"aliases"`
	InitMethod    string   `yaml:"initMethod" toml:"initMethod" json:"initMethod"`
	DestroyMethod string   `yaml:"destroyMethod" toml:"destroyMethod" json:"destroyMethod"`
	Role          string   `yaml:"role" toml:"role" json:"role"`
}

// apply registers every entry of the document as an external definition.
func (d *document) apply(location string, registry gestalt.DefinitionRegistry) error {
	for _, entry := range d.Definitions {
		if entry.Name == "" {
			return fmt.Errorf("%w: definition without a name in %s", gestalt.ErrMalformedDirective, location)
		}
		def := gestalt.NewDefinition(entry.Name)
		def.ClassName = entry.Class
		if entry.Scope != "" {
			def.Scope = entry.Scope
		}
		def.Aliases = entry.Aliases
		def.InitMethod = entry.InitMethod
		def.DestroyMethod = entry.DestroyMethod
		switch entry.Role {
		case "support":
			def.Role = gestalt.RoleSupport
		case "infrastructure":
			def.Role = gestalt.RoleInfrastructure
		}
		if err := registry.Put(entry.Name, def); err != nil {
			return err
		}
		for _, alias := range entry.Aliases {
			if err := registry.RegisterAlias(entry.Name, alias); err != nil {
				return err
			}
		}
	}
	return nil
}
