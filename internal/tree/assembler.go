// Package tree assembles the hermetic on-disk interface tree consumed by the
// binding generator:
//
//	root/<own files>
//	root/deps/<package>/<files>
//	root/deps.toml
//
// Transitive dependencies are flattened into the single deps/ level and every
// link target is relative, so the tree survives being copied or sandboxed.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/pulseengine/component-resolver/internal/graph"
)

// DepsDir is the directory holding flattened dependency packages.
const DepsDir = "deps"

// ResolvedTree describes a published tree.
type ResolvedTree struct {
	Root     string
	Package  string
	Strategy Strategy
	// OwnFiles are names relative to Root.
	OwnFiles []string
	// Deps is sorted by package identity.
	Deps    []DepDir
	Mapping Mapping
	// Entries is the number of links (or copies) in the tree.
	Entries int
}

type DepDir struct {
	Package string
	// Dir is relative to the tree root, e.g. "deps/wasi-io-0.2.0".
	Dir   string
	Files []string
}

// DepPackages returns the dependency package identities in tree order.
func (t *ResolvedTree) DepPackages() []string {
	out := make([]string, len(t.Deps))
	for i, d := range t.Deps {
		out[i] = d.Package
	}
	return out
}

// Assembler builds trees under a private temporary directory next to the
// destination and renames them into place once verified.
type Assembler struct {
	Strategy Strategy
}

// Assemble builds the tree for module and its transitive closure deps at dest.
// with maps dependency packages to existing binding strategies.
//
// A previous tree at dest is replaced only after the new one verified, so a
// failed run leaves the old tree untouched and never exposes a partial one.
func (a *Assembler) Assemble(ctx context.Context, module graph.Module, deps []graph.Module, dest string, with map[string]string) (*ResolvedTree, error) {
	logger := log.FromContext(ctx).WithValues("module", module.ID.String(), "dest", dest)

	dest, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	plan, err := a.plan(module, deps)
	if err != nil {
		return nil, err
	}

	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dest)+".tmp-")
	if err != nil {
		return nil, err
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(tmp)
		}
	}()

	for _, e := range plan.entries {
		src, err := filepath.Abs(e.src)
		if err != nil {
			return nil, err
		}
		if err := a.Strategy.Materialize(src, filepath.Join(tmp, e.rel), filepath.Join(dest, e.rel)); err != nil {
			return nil, fmt.Errorf("materialize %s for %q: %w", e.rel, e.pkg, err)
		}
	}

	n, err := Verify(tmp, a.Strategy)
	if err != nil {
		return nil, err
	}
	if n != len(plan.entries) {
		return nil, &CountMismatchError{Want: len(plan.entries), Got: n}
	}

	out := plan.tree
	out.Root = dest
	out.Strategy = a.Strategy
	out.Entries = n
	out.Mapping = DecideMapping(out.DepPackages(), with)
	if err := writeManifest(tmp, out, module.World); err != nil {
		return nil, err
	}

	if err := publish(tmp, dest); err != nil {
		return nil, err
	}
	published = true
	logger.Info("assembled interface tree", "deps", len(out.Deps), "entries", n, "strategy", a.Strategy.String())
	return out, nil
}

type entry struct {
	pkg string
	src string
	rel string
}

type treePlan struct {
	tree    *ResolvedTree
	entries []entry
}

// plan lays out every entry and rejects collisions before touching disk.
func (a *Assembler) plan(module graph.Module, deps []graph.Module) (*treePlan, error) {
	p := &treePlan{tree: &ResolvedTree{Package: module.ID.String()}}
	taken := make(map[string]string)
	claim := func(rel, owner string) error {
		if prev, ok := taken[rel]; ok {
			return &CollisionError{Path: rel, First: prev, Other: owner}
		}
		taken[rel] = owner
		return nil
	}
	// Reserve the names the tree itself uses.
	taken[DepsDir] = "tree layout"
	taken[ManifestName] = "tree layout"

	for _, src := range module.Srcs {
		rel := filepath.Base(src)
		if err := claim(rel, module.ID.String()); err != nil {
			return nil, err
		}
		p.tree.OwnFiles = append(p.tree.OwnFiles, rel)
		p.entries = append(p.entries, entry{pkg: module.ID.String(), src: src, rel: rel})
	}

	sorted := append([]graph.Module(nil), deps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.String() < sorted[j].ID.String() })
	for _, d := range sorted {
		pkg := d.ID.String()
		if pkg == module.ID.String() {
			return nil, &CollisionError{Path: ".", First: pkg, Other: pkg}
		}
		dir := filepath.Join(DepsDir, d.ID.DirName())
		if err := claim(dir, pkg); err != nil {
			return nil, err
		}
		dd := DepDir{Package: pkg, Dir: filepath.ToSlash(dir)}
		for _, src := range d.Srcs {
			rel := filepath.Join(dir, filepath.Base(src))
			if err := claim(rel, pkg); err != nil {
				return nil, err
			}
			dd.Files = append(dd.Files, filepath.Base(src))
			p.entries = append(p.entries, entry{pkg: pkg, src: src, rel: rel})
		}
		p.tree.Deps = append(p.tree.Deps, dd)
	}
	return p, nil
}

// Verify walks an assembled tree, checks that every entry resolves to a
// regular file and returns the number of entries. deps.toml is not counted.
func Verify(root string, s Strategy) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if rel == ManifestName {
			return nil
		}
		pkg := packageOf(rel)
		if d.Type()&fs.ModeSymlink != 0 {
			target, _ := os.Readlink(path)
			if s == Link && filepath.IsAbs(target) {
				return fmt.Errorf("internal error: link %s has absolute target %s", rel, target)
			}
			info, err := os.Stat(path)
			if err != nil {
				return &DanglingLinkError{Package: pkg, Link: rel, Target: target, Err: err}
			}
			if !info.Mode().IsRegular() {
				return &DanglingLinkError{Package: pkg, Link: rel, Target: target, Err: errors.New("target is not a regular file")}
			}
		}
		n++
		return nil
	})
	return n, err
}

// packageOf returns the deps/ directory name holding rel, or "." for own files.
func packageOf(rel string) string {
	dir := filepath.Dir(rel)
	if filepath.Dir(dir) == DepsDir {
		return filepath.Base(dir)
	}
	return "."
}

// publish moves tmp to dest. An existing dest is swapped out first and
// removed only after the rename succeeded.
func publish(tmp, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		old := tmp + ".old"
		if err := os.Rename(dest, old); err != nil {
			return fmt.Errorf("replace %s: %w", dest, err)
		}
		if err := os.Rename(tmp, dest); err != nil {
			_ = os.Rename(old, dest)
			return fmt.Errorf("publish %s: %w", dest, err)
		}
		return os.RemoveAll(old)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("publish %s: %w", dest, err)
	}
	return nil
}
