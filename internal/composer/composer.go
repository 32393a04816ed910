// Package composer stages a resolved plan for the external composition tool
// and runs it.
package composer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/pulseengine/component-resolver/internal/metrics"
	"github.com/pulseengine/component-resolver/internal/pkgref"
	"github.com/pulseengine/component-resolver/internal/resolver"
	"github.com/pulseengine/component-resolver/internal/toolexec"
	"github.com/pulseengine/component-resolver/internal/tree"
	"github.com/pulseengine/component-resolver/internal/wac"
)

const (
	// DepsDir holds one <namespace>/<name>.wasm per package of the plan.
	DepsDir = "deps"
	// ComponentsFile records which artifact backs each instance.
	ComponentsFile = "components.toml"
)

// Composer invokes a wac compatible tool.
type Composer struct {
	Tool     string
	Runner   toolexec.Runner
	Strategy tree.Strategy
	Metrics  *metrics.Collectors
}

// ComposerInvocationError wraps any failure to produce the composed artifact.
// For tool failures Instances names the instances the diagnostic points at,
// or every instance of the plan when it names none.
type ComposerInvocationError struct {
	Composition string
	Instances   []string
	Err         error
}

func (e *ComposerInvocationError) Error() string {
	if len(e.Instances) == 0 {
		return fmt.Sprintf("compose %q: %s", e.Composition, e.Err)
	}
	return fmt.Sprintf("compose %q (instances %s): %s", e.Composition, strings.Join(e.Instances, ", "), e.Err)
}

func (e *ComposerInvocationError) Unwrap() error { return e.Err }

// blame maps the tool diagnostic back to plan instances by instance name or
// package identity.
func blame(plan *resolver.Plan, err error) []string {
	diag := err.Error()
	var ee *toolexec.ExitError
	if errors.As(err, &ee) && ee.Stderr != "" {
		diag = ee.Stderr
	}
	tokens := sets.New[string]()
	for _, tok := range strings.FieldsFunc(diag, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("-_:@.", r)
	}) {
		tok = strings.TrimRight(tok, ".:")
		tokens.Insert(tok)
		if id, err := pkgref.ParsePackageID(tok); err == nil {
			tokens.Insert(id.Unversioned())
		}
	}

	var named, all []string
	for _, in := range plan.Instances {
		all = append(all, in.Name)
		if tokens.Has(in.Name) || tokens.Has(in.Package) {
			named = append(named, in.Name)
			continue
		}
		if id, err := pkgref.ParsePackageID(in.Package); err == nil && tokens.Has(id.Unversioned()) {
			named = append(named, in.Name)
		}
	}
	if len(named) == 0 {
		return all
	}
	return named
}

type tomlComponents struct {
	Package   string          `toml:"package"`
	Instances []tomlComponent `toml:"instance"`
}

type tomlComponent struct {
	Name     string `toml:"name"`
	Package  string `toml:"package"`
	Profile  string `toml:"profile,omitempty"`
	Remote   string `toml:"remote,omitempty"`
	Artifact string `toml:"artifact"`
	Digest   string `toml:"digest,omitempty"`
}

// Stage writes the composer inputs for plan into dir: the rendered source,
// the deps directory and components.toml. dir is recreated.
func (c *Composer) Stage(plan *resolver.Plan, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, DepsDir), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, wac.FileName), wac.Render(plan), 0o644); err != nil {
		return err
	}

	// Keyed by namespace:name, the composer's lookup key.
	staged := make(map[string]resolver.Instance)
	record := tomlComponents{Package: plan.Package}
	for _, in := range plan.Instances {
		record.Instances = append(record.Instances, tomlComponent{
			Name:     in.Name,
			Package:  in.Package,
			Profile:  in.Profile,
			Remote:   in.Remote,
			Artifact: in.Artifact,
			Digest:   in.Digest,
		})
		id, err := pkgref.ParsePackageID(in.Package)
		if err != nil {
			return fmt.Errorf("instance %q: %w", in.Name, err)
		}
		if prev, ok := staged[id.Unversioned()]; ok {
			if prev.Artifact != in.Artifact {
				return &resolver.PackageConflictError{Package: id.Unversioned(), Instances: [2]string{prev.Name, in.Name}}
			}
			continue
		}
		src, err := filepath.Abs(in.Artifact)
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, DepsDir, id.Namespace, id.Name+".wasm")
		if err := c.Strategy.Materialize(src, dst, dst); err != nil {
			return fmt.Errorf("stage %s for instance %q: %w", in.Package, in.Name, err)
		}
		staged[id.Unversioned()] = in
	}

	f, err := os.Create(filepath.Join(dir, ComponentsFile))
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(&record); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", ComponentsFile, err)
	}
	return f.Close()
}

// Args builds the composer command line, relative to the staging directory.
func Args(out string) []string {
	return []string{"compose", "--deps-dir", DepsDir, "-o", out, wac.FileName}
}

// Compose stages plan under workDir and writes the composed artifact to out.
// out is replaced only when the tool succeeded.
func (c *Composer) Compose(ctx context.Context, plan *resolver.Plan, workDir, out string) error {
	logger := log.FromContext(ctx).WithValues("composition", plan.Composition)
	wrap := func(err error) error {
		return &ComposerInvocationError{Composition: plan.Composition, Err: err}
	}

	dir := filepath.Join(workDir, "compose", plan.Composition)
	if err := c.Stage(plan, dir); err != nil {
		return wrap(err)
	}

	out, err := filepath.Abs(out)
	if err != nil {
		return wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return wrap(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".tmp-")
	if err != nil {
		return wrap(err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	start := time.Now()
	_, err = c.Runner.Run(ctx, toolexec.Cmd{Path: c.Tool, Args: Args(tmp.Name()), Dir: dir})
	c.Metrics.ObserveTool("composer", start)
	if err != nil {
		return &ComposerInvocationError{Composition: plan.Composition, Instances: blame(plan, err), Err: err}
	}
	if fi, err := os.Stat(tmp.Name()); err != nil || fi.Size() == 0 {
		return wrap(fmt.Errorf("%s produced no output", strings.TrimSpace(c.Tool)))
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return wrap(err)
	}
	logger.Info("composed", "out", out, "instances", len(plan.Instances))
	return nil
}
