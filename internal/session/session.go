// Package session holds the state of one resolver run: declared modules,
// registered profiles, the remote memo and the metrics registry. Nothing is
// shared between sessions.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/controller-runtime/pkg/log"

	resolverv1alpha1 "github.com/pulseengine/component-resolver/api/v1alpha1"
	"github.com/pulseengine/component-resolver/internal/bindgen"
	"github.com/pulseengine/component-resolver/internal/composer"
	"github.com/pulseengine/component-resolver/internal/config"
	"github.com/pulseengine/component-resolver/internal/digest"
	"github.com/pulseengine/component-resolver/internal/graph"
	"github.com/pulseengine/component-resolver/internal/manifest"
	"github.com/pulseengine/component-resolver/internal/metrics"
	"github.com/pulseengine/component-resolver/internal/pkgref"
	"github.com/pulseengine/component-resolver/internal/profile"
	"github.com/pulseengine/component-resolver/internal/registry"
	"github.com/pulseengine/component-resolver/internal/remote"
	"github.com/pulseengine/component-resolver/internal/resolver"
	"github.com/pulseengine/component-resolver/internal/surface"
	"github.com/pulseengine/component-resolver/internal/toolexec"
	"github.com/pulseengine/component-resolver/internal/tree"
)

const (
	treesDir  = "trees"
	digestLRU = 1024
	probeLRU  = 256
)

type Session struct {
	ID     string
	Config *config.Config

	Registry *prometheus.Registry
	Metrics  *metrics.Collectors

	Modules  *graph.Builder
	Profiles *profile.Tracker
	Remote   *remote.Resolver
	Digests  *digest.Cache

	Assembler *tree.Assembler
	Generator *bindgen.Generator
	Resolver  *resolver.Resolver
	Composer  *composer.Composer

	mu           sync.Mutex
	generators   map[string]*resolverv1alpha1.GeneratorSpec
	compositions map[string]*resolverv1alpha1.Composition
	conns        []*grpc.ClientConn
}

type options struct {
	runner  toolexec.Runner
	sources map[string]remote.Source
}

type Option func(*options)

// WithRunner replaces the process runner for every external tool.
func WithRunner(r toolexec.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithSource registers an additional remote source, replacing a configured
// one of the same name.
func WithSource(name string, src remote.Source) Option {
	return func(o *options) { o.sources[name] = src }
}

// New builds a session from cfg. Remote sources are created for every
// configured backend.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	o := options{runner: toolexec.Exec{}, sources: make(map[string]remote.Source)}
	for _, opt := range opts {
		opt(&o)
	}
	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:           uuid.NewString(),
		Config:       cfg,
		Registry:     prometheus.NewRegistry(),
		Modules:      graph.NewBuilder(),
		Profiles:     profile.NewTracker(),
		Digests:      digest.NewCache(digestLRU),
		Assembler:    &tree.Assembler{Strategy: strategy},
		generators:   make(map[string]*resolverv1alpha1.GeneratorSpec),
		compositions: make(map[string]*resolverv1alpha1.Composition),
	}
	s.Metrics = metrics.New(s.Registry)

	sources, err := s.sources(cfg, o.sources)
	if err != nil {
		s.Close()
		return nil, err
	}
	remoteOpts := []remote.Option{
		remote.WithDefaultSource(cfg.DefaultSource),
		remote.WithMetrics(s.Metrics),
		remote.WithDigests(s.Digests),
	}
	for name, src := range sources {
		remoteOpts = append(remoteOpts, remote.WithSource(name, src))
	}
	s.Remote = remote.NewResolver(cfg.CacheDir, remoteOpts...)

	s.Generator = &bindgen.Generator{Tool: cfg.Tools.WitBindgen, Runner: o.runner, Metrics: s.Metrics}
	s.Composer = &composer.Composer{Tool: cfg.Tools.Wac, Runner: o.runner, Strategy: strategy, Metrics: s.Metrics}
	s.Resolver = &resolver.Resolver{
		Profiles:      s.Profiles,
		Remote:        s.Remote,
		Prober:        surface.NewCachingProber(&surface.WITProber{Tool: cfg.Tools.WasmTools, Runner: o.runner}, s.Digests, probeLRU),
		Metrics:       s.Metrics,
		ProfilePolicy: cfg.ProfilePolicy,
		ImportPolicy:  cfg.ImportPolicy,
	}
	return s, nil
}

func (s *Session) sources(cfg *config.Config, extra map[string]remote.Source) (map[string]remote.Source, error) {
	out := make(map[string]remote.Source)
	if cfg.MirrorDir != "" {
		out[config.SourceMirror] = remote.NewDirSource(cfg.MirrorDir)
	}
	if cfg.S3.Enabled {
		src, err := remote.NewS3Source(cfg.S3.S3Config)
		if err != nil {
			return nil, err
		}
		out[config.SourceS3] = src
	}
	if cfg.RegistryAddr != "" {
		client, conn, err := registry.Dial(cfg.RegistryAddr)
		if err != nil {
			return nil, fmt.Errorf("dial registry %s: %w", cfg.RegistryAddr, err)
		}
		s.conns = append(s.conns, conn)
		out[config.SourceRegistry] = &remote.GRPCSource{Client: client}
	}
	for name, src := range extra {
		out[name] = src
	}
	return out, nil
}

// Close releases registry connections.
func (s *Session) Close() error {
	var errs []error
	for _, c := range s.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.conns = nil
	return utilerrors.NewAggregate(errs)
}

// Context returns ctx carrying a logger tagged with the session ID.
func (s *Session) Context(ctx context.Context) context.Context {
	return log.IntoContext(ctx, s.Logger(ctx))
}

func (s *Session) Logger(ctx context.Context) logr.Logger {
	return log.FromContext(ctx).WithValues("session", s.ID)
}

// Load declares every document of set. All invalid documents are reported
// together.
func (s *Session) Load(set *manifest.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for i := range set.InterfaceModules {
		im := &set.InterfaceModules[i]
		m, err := moduleOf(im)
		if err == nil {
			err = s.Modules.Add(m)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("interface module %q: %w", im.Name, err))
			continue
		}
		if im.Spec.Generator != nil {
			s.generators[m.ID.String()] = im.Spec.Generator
		}
	}
	for i := range set.ComponentProfiles {
		if err := s.Profiles.Load(&set.ComponentProfiles[i]); err != nil {
			errs = append(errs, err)
		}
	}
	for i := range set.Compositions {
		c := &set.Compositions[i]
		if _, dup := s.compositions[c.Name]; dup {
			errs = append(errs, fmt.Errorf("composition %q declared more than once", c.Name))
			continue
		}
		s.compositions[c.Name] = c
	}
	return utilerrors.NewAggregate(errs)
}

func moduleOf(im *resolverv1alpha1.InterfaceModule) (graph.Module, error) {
	id, err := pkgref.ParsePackageID(im.Spec.Package)
	if err != nil {
		return graph.Module{}, err
	}
	m := graph.Module{ID: id, World: im.Spec.World, Srcs: im.Spec.Srcs}
	for _, raw := range im.Spec.Deps {
		dep, err := pkgref.ParsePackageID(raw)
		if err != nil {
			return graph.Module{}, fmt.Errorf("dependency: %w", err)
		}
		m.Deps = append(m.Deps, dep)
	}
	return m, nil
}

// Compositions returns the declared composition names, sorted.
func (s *Session) Compositions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.compositions))
	for name := range s.compositions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TreeDir is where the tree of pkg is published.
func (s *Session) TreeDir(id pkgref.PackageID) string {
	return filepath.Join(s.Config.WorkDir, treesDir, id.DirName())
}

// BuildTree resolves the transitive closure of pkg and assembles its tree.
func (s *Session) BuildTree(ctx context.Context, pkg string) (*tree.ResolvedTree, error) {
	id, err := pkgref.ParsePackageID(pkg)
	if err != nil {
		return nil, err
	}
	deps, err := s.Modules.Resolve(ctx, id)
	if err != nil {
		if graph.IsCyclic(err) {
			s.Metrics.ModuleCycles.Inc()
		}
		return nil, err
	}
	module, _ := s.Modules.Get(id)

	var with map[string]string
	if g := s.generator(id); g != nil {
		with = g.With
	}
	t, err := s.Assembler.Assemble(ctx, module, deps, s.TreeDir(id), with)
	if err != nil {
		return nil, err
	}
	s.Metrics.TreesAssembled.Inc()
	s.Metrics.TreeEntries.Observe(float64(t.Entries))
	return t, nil
}

func (s *Session) generator(id pkgref.PackageID) *resolverv1alpha1.GeneratorSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generators[id.String()]
}

// Generate builds the tree of pkg and runs the binding generator on it.
// language overrides the module's generator language when set.
func (s *Session) Generate(ctx context.Context, pkg, language, outDir string) (*tree.ResolvedTree, error) {
	t, err := s.BuildTree(ctx, pkg)
	if err != nil {
		return nil, err
	}
	id := pkgref.MustParsePackageID(pkg)
	if language == "" {
		if g := s.generator(id); g != nil {
			language = g.Language
		}
	}
	if language == "" {
		return nil, fmt.Errorf("module %q declares no generator language; pass one explicitly", pkg)
	}
	module, _ := s.Modules.Get(id)
	err = s.Generator.Generate(ctx, bindgen.Request{Tree: t, World: module.World, Language: language, OutDir: outDir})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Resolve builds the plan of the named composition.
func (s *Session) Resolve(ctx context.Context, name string) (*resolver.Plan, error) {
	s.mu.Lock()
	comp, ok := s.compositions[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("composition %q is not declared (have %v)", name, s.Compositions())
	}
	return s.Resolver.Resolve(ctx, comp)
}

// Compose resolves the named composition and writes the composed artifact to
// out.
func (s *Session) Compose(ctx context.Context, name, out string) (*resolver.Plan, error) {
	plan, err := s.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.Composer.Compose(ctx, plan, s.Config.WorkDir, out); err != nil {
		return nil, err
	}
	return plan, nil
}

// ComposeAll composes every named composition into outDir/<name>.wasm in
// parallel. A failing composition does not stop the others; all failures are
// returned together.
func (s *Session) ComposeAll(ctx context.Context, names []string, outDir string) (map[string]*resolver.Plan, error) {
	plans := make([]*resolver.Plan, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			plans[i], errs[i] = s.Compose(ctx, name, filepath.Join(outDir, name+".wasm"))
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*resolver.Plan, len(names))
	for i, name := range names {
		if plans[i] != nil {
			out[name] = plans[i]
		}
	}
	return out, utilerrors.NewAggregate(errs)
}
