package tool

import (
	"sort"

	"github.com/hupe1980/travelmesh/model"
)

// Registry is a static name→Tool catalog built once at startup and read-only
// afterwards, so it needs no locking. A lookup miss is a normal "not found"
// result: callers synthesize an error string for the model instead of
// failing the turn.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools. Later duplicates of a
// name silently win, matching map semantics; avoid duplicate names.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Lookup returns the named tool, or false when it is not registered.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions renders the catalog as model tool definitions, sorted by name
// for deterministic requests.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
