package tree

import "sort"

// Mapping tells the binding generator how to treat dependency packages. It is
// either ExplicitMapping or GenerateAll.
type Mapping interface {
	// Strategies returns the explicit package to strategy entries, if any.
	Strategies() map[string]string
	isMapping()
}

// ExplicitMapping maps every dependency package to an existing strategy.
type ExplicitMapping map[string]string

func (m ExplicitMapping) Strategies() map[string]string { return m }
func (ExplicitMapping) isMapping()                      {}

// GenerateAll asks the generator to produce bindings for every package not
// listed in With.
type GenerateAll struct {
	With map[string]string
}

func (g GenerateAll) Strategies() map[string]string { return g.With }
func (GenerateAll) isMapping()                      {}

// DecideMapping returns ExplicitMapping when with covers every package in deps
// and GenerateAll otherwise. Entries for packages outside deps are dropped.
func DecideMapping(deps []string, with map[string]string) Mapping {
	kept := make(map[string]string, len(with))
	complete := true
	for _, pkg := range deps {
		if s, ok := with[pkg]; ok {
			kept[pkg] = s
		} else {
			complete = false
		}
	}
	if complete {
		return ExplicitMapping(kept)
	}
	return GenerateAll{With: kept}
}

// Unmapped lists deps packages absent from m, sorted.
func Unmapped(m Mapping, deps []string) []string {
	var out []string
	for _, pkg := range deps {
		if _, ok := m.Strategies()[pkg]; !ok {
			out = append(out, pkg)
		}
	}
	sort.Strings(out)
	return out
}
