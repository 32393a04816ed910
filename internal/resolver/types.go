package resolver

import (
	"github.com/pulseengine/component-resolver/internal/surface"
)

// Plan is the resolved form of one Composition. It is built once and never
// mutated afterwards.
type Plan struct {
	// Composition is the metadata.name of the source document.
	Composition string
	// Package names the composed artifact.
	Package string
	// Instances are in instantiation order: providers before consumers,
	// declaration order among independent instances.
	Instances []Instance
	// Bindings are sorted by destination instance order, then import name.
	Bindings    []Binding
	Exports     []Export
	Diagnostics Diagnostics
}

// Instance is a composition instance bound to a concrete artifact.
type Instance struct {
	Name string
	// Package is the package name the composer sees, e.g. "local:calc".
	Package  string
	Artifact string
	Digest   string

	Component string
	Profile   string
	Remote    string

	// HostImports marks the instance as accepting every import that is not
	// bound explicitly from the host.
	HostImports bool
	Surface     surface.Surface
}

// BindingOrigin says how a binding came about.
type BindingOrigin string

const (
	OriginConnection BindingOrigin = "connection"
	OriginPlug       BindingOrigin = "plug"
)

// Binding satisfies the import To.Import with the export From.Export.
type Binding struct {
	From   string        `json:"from"`
	Export string        `json:"export"`
	To     string        `json:"to"`
	Import string        `json:"import"`
	Origin BindingOrigin `json:"origin"`
}

// Export re-exports an instance interface. An empty Interface exports every
// export of the instance.
type Export struct {
	Instance  string
	Interface string
}

// Diagnostics captures information about resolution that is not an error.
type Diagnostics struct {
	ProfileFallbacks []ProfileFallback
	// Unresolved are imports no connection or plug satisfied, left for the
	// host.
	Unresolved []UnresolvedImport
}

type ProfileFallback struct {
	Instance    string
	Component   string
	Requested   string
	Substituted string
}

type UnresolvedImport struct {
	Instance  string
	Interface string
}

// Instance returns the named instance.
func (p *Plan) Instance(name string) (Instance, bool) {
	for _, i := range p.Instances {
		if i.Name == name {
			return i, true
		}
	}
	return Instance{}, false
}

// BindingsTo returns the bindings whose destination is instance, in plan order.
func (p *Plan) BindingsTo(instance string) []Binding {
	var out []Binding
	for _, b := range p.Bindings {
		if b.To == instance {
			out = append(out, b)
		}
	}
	return out
}
