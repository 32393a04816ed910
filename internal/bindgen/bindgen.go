// Package bindgen hands an assembled interface tree to the external binding
// generator.
package bindgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/pulseengine/component-resolver/internal/metrics"
	"github.com/pulseengine/component-resolver/internal/toolexec"
	"github.com/pulseengine/component-resolver/internal/tree"
)

// Request is one generator invocation.
type Request struct {
	Tree     *tree.ResolvedTree
	World    string
	Language string
	OutDir   string
}

// Generator invokes a wit-bindgen compatible tool.
type Generator struct {
	Tool    string
	Runner  toolexec.Runner
	Metrics *metrics.Collectors
}

// GeneratorInvocationError wraps a failed generator run.
type GeneratorInvocationError struct {
	Package  string
	World    string
	Language string
	Err      error
}

func (e *GeneratorInvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "generate %s bindings for %q", e.Language, e.Package)
	if e.World != "" {
		fmt.Fprintf(&b, " (world %q)", e.World)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *GeneratorInvocationError) Unwrap() error { return e.Err }

// Args builds the generator command line. Explicit entries become --with
// flags; GenerateAll adds --generate-all so unmapped packages never fail.
func Args(req Request, outDir string) []string {
	args := []string{req.Language, "--out-dir", outDir}
	if req.World != "" {
		args = append(args, "--world", req.World)
	}
	with := req.Tree.Mapping.Strategies()
	keys := make([]string, 0, len(with))
	for k := range with {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--with", k+"="+with[k])
	}
	if _, ok := req.Tree.Mapping.(tree.GenerateAll); ok {
		args = append(args, "--generate-all")
	}
	return append(args, req.Tree.Root)
}

// Generate runs the generator into a private directory and moves the result
// to req.OutDir once the tool succeeded.
func (g *Generator) Generate(ctx context.Context, req Request) error {
	logger := log.FromContext(ctx).WithValues("package", req.Tree.Package, "language", req.Language)
	wrap := func(err error) error {
		return &GeneratorInvocationError{Package: req.Tree.Package, World: req.World, Language: req.Language, Err: err}
	}

	parent := filepath.Dir(req.OutDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return wrap(err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(req.OutDir)+".tmp-")
	if err != nil {
		return wrap(err)
	}
	defer os.RemoveAll(tmp)

	start := time.Now()
	_, err = g.Runner.Run(ctx, toolexec.Cmd{Path: g.Tool, Args: Args(req, tmp)})
	g.Metrics.ObserveTool("bindgen", start)
	if err != nil {
		return wrap(err)
	}
	if err := os.RemoveAll(req.OutDir); err != nil {
		return wrap(err)
	}
	if err := os.Rename(tmp, req.OutDir); err != nil {
		return wrap(err)
	}
	logger.Info("generated bindings", "out", req.OutDir)
	return nil
}
