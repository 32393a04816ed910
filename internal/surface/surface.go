// Package surface describes the interfaces a component imports and exports.
package surface

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	resolverv1alpha1 "github.com/pulseengine/component-resolver/api/v1alpha1"
)

// Interface is one imported or exported interface. Type is an optional
// structural fingerprint.
type Interface struct {
	Name string
	Type string
}

// Surface is the import/export surface of one component.
type Surface struct {
	Imports []Interface
	Exports []Interface
}

// FromSpec converts a declared surface.
func FromSpec(s *resolverv1alpha1.SurfaceSpec) Surface {
	var out Surface
	if s == nil {
		return out
	}
	for _, i := range s.Imports {
		out.Imports = append(out.Imports, Interface{Name: i.Name, Type: i.Type})
	}
	for _, e := range s.Exports {
		out.Exports = append(out.Exports, Interface{Name: e.Name, Type: e.Type})
	}
	return out
}

func find(list []Interface, name string) (Interface, bool) {
	for _, i := range list {
		if i.Name == name {
			return i, true
		}
	}
	return Interface{}, false
}

func (s Surface) Import(name string) (Interface, bool) { return find(s.Imports, name) }
func (s Surface) Export(name string) (Interface, bool) { return find(s.Exports, name) }

// ImportNames returns import names, sorted.
func (s Surface) ImportNames() []string { return names(s.Imports) }

// ExportNames returns export names, sorted.
func (s Surface) ExportNames() []string { return names(s.Exports) }

func names(list []Interface) []string {
	out := make([]string, len(list))
	for i, x := range list {
		out[i] = x.Name
	}
	sort.Strings(out)
	return out
}

// Compatible reports whether an export can satisfy an import: names must be
// equal, and types too when both sides declare one.
func Compatible(exp, imp Interface) bool {
	if exp.Name != imp.Name {
		return false
	}
	return exp.Type == "" || imp.Type == "" || exp.Type == imp.Type
}

// Prober reads the surface of a built component.
type Prober interface {
	Probe(ctx context.Context, artifact string) (Surface, error)
}

// Digester returns a content identity for an artifact.
type Digester interface {
	File(path string) (string, error)
}

// CachingProber memoizes another Prober by artifact content.
type CachingProber struct {
	Prober   Prober
	Digester Digester
	cache    *lru.Cache[string, Surface]
}

func NewCachingProber(p Prober, d Digester, size int) *CachingProber {
	c, err := lru.New[string, Surface](size)
	if err != nil {
		panic(err)
	}
	return &CachingProber{Prober: p, Digester: d, cache: c}
}

func (c *CachingProber) Probe(ctx context.Context, artifact string) (Surface, error) {
	key, err := c.Digester.File(artifact)
	if err != nil {
		return Surface{}, err
	}
	if s, ok := c.cache.Get(key); ok {
		return s, nil
	}
	s, err := c.Prober.Probe(ctx, artifact)
	if err != nil {
		return Surface{}, err
	}
	c.cache.Add(key, s)
	return s, nil
}
