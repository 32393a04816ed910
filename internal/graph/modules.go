package graph

import (
	"context"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/pulseengine/component-resolver/internal/pkgref"
)

// Module is a declared interface module: its identity, own files and direct
// dependencies. Srcs are absolute paths once loaded.
type Module struct {
	ID    pkgref.PackageID
	World string
	Srcs  []string
	Deps  []pkgref.PackageID
}

// Builder collects declared modules and resolves transitive closures.
type Builder struct {
	modules map[string]Module
	order   []string
}

func NewBuilder() *Builder {
	return &Builder{modules: make(map[string]Module)}
}

// Add declares m. Declaring the same package identity twice is an error.
func (b *Builder) Add(m Module) error {
	key := m.ID.String()
	if _, ok := b.modules[key]; ok {
		return &DuplicateModuleError{Package: key}
	}
	b.modules[key] = m
	b.order = append(b.order, key)
	return nil
}

func (b *Builder) Get(id pkgref.PackageID) (Module, bool) {
	m, ok := b.modules[id.String()]
	return m, ok
}

// Resolve returns every module transitively required by root, root excluded,
// each package exactly once and sorted by identity.
//
// Cycles anywhere below root fail with CyclicDependencyError before anything
// is returned. A module depending on itself is a one-node cycle.
func (b *Builder) Resolve(ctx context.Context, root pkgref.PackageID) ([]Module, error) {
	logger := log.FromContext(ctx).WithValues("module", root.String())

	rootKey := root.String()
	if _, ok := b.modules[rootKey]; !ok {
		return nil, b.notFound(root, "")
	}

	g := NewDigraph()
	visited := sets.New[string]()
	queue := []string{rootKey}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if visited.Has(key) {
			continue
		}
		visited.Insert(key)
		g.AddNode(key)
		for _, dep := range b.modules[key].Deps {
			depKey := dep.String()
			if _, ok := b.modules[depKey]; !ok {
				return nil, b.notFound(dep, key)
			}
			g.AddNode(depKey)
			if err := g.AddEdge(key, depKey); err != nil {
				return nil, err
			}
			queue = append(queue, depKey)
		}
	}

	reach, cycle := g.Reachable(rootKey)
	if cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	sort.Strings(reach)
	out := make([]Module, 0, len(reach))
	for _, key := range reach {
		out = append(out, b.modules[key])
	}
	logger.V(1).Info("resolved module graph", "transitive", len(out))
	return out, nil
}

func (b *Builder) notFound(missing pkgref.PackageID, requiredBy string) error {
	var candidates []string
	for _, key := range b.order {
		if m := b.modules[key]; m.ID.Unversioned() == missing.Unversioned() {
			candidates = append(candidates, key)
		}
	}
	return &ModuleNotFoundError{Package: missing.String(), RequiredBy: requiredBy, Candidates: candidates}
}
