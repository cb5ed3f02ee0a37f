package gestalt

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DefinitionView is the wire shape of one definition on the introspection
// endpoint.
type DefinitionView struct {
	Name              string   `json:"name"`
	Aliases           []string `json:"aliases,omitempty"`
	ClassName         string   `json:"className,omitempty"`
	Scope             string   `json:"scope"`
	FactoryClassName  string   `json:"factoryClassName,omitempty"`
	FactoryComponent  string   `json:"factoryComponent,omitempty"`
	FactoryMethodName string   `json:"factoryMethodName,omitempty"`
	ProxyTargetName   string   `json:"proxyTargetName,omitempty"`
	Provenance        string   `json:"provenance"`
	Role              string   `json:"role"`
}

// InspectHandler serves a read-only JSON view of a factory's definitions
// and observers for debugging:
//
//	GET /definitions
//	GET /definitions/{name}
//	GET /observers
func InspectHandler(factory *ComponentFactory) http.Handler {
	r := chi.NewRouter()
	r.Get("/definitions", func(w http.ResponseWriter, _ *http.Request) {
		names := factory.AllNames()
		views := make([]DefinitionView, 0, len(names))
		for _, name := range names {
			def, err := factory.Get(name)
			if err != nil {
				continue
			}
			views = append(views, viewOf(name, def))
		}
		writeJSON(w, http.StatusOK, views)
	})
	r.Get("/definitions/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		def, err := factory.Get(name)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, viewOf(name, def))
	})
	r.Get("/observers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, factory.Observers())
	})
	return r
}

func viewOf(name string, def *Definition) DefinitionView {
	return DefinitionView{
		Name:              name,
		Aliases:           def.Aliases,
		ClassName:         def.ClassName,
		Scope:             def.Scope,
		FactoryClassName:  def.FactoryClassName,
		FactoryComponent:  def.FactoryComponent,
		FactoryMethodName: def.FactoryMethodName,
		ProxyTargetName:   def.ProxyTargetName,
		Provenance:        provenanceName(def.Provenance),
		Role:              roleName(def.Role),
	}
}

func provenanceName(p Provenance) string {
	switch p {
	case ProvenanceScanned:
		return "scanned"
	case ProvenanceGraph:
		return "graph"
	default:
		return "external"
	}
}

func roleName(r Role) string {
	switch r {
	case RoleSupport:
		return "support"
	case RoleInfrastructure:
		return "infrastructure"
	default:
		return "application"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
