package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	resolverv1alpha1 "github.com/pulseengine/component-resolver/api/v1alpha1"
	"github.com/pulseengine/component-resolver/internal/composer"
	"github.com/pulseengine/component-resolver/internal/config"
	"github.com/pulseengine/component-resolver/internal/graph"
	"github.com/pulseengine/component-resolver/internal/manifest"
	"github.com/pulseengine/component-resolver/internal/toolexec"
	"github.com/pulseengine/component-resolver/internal/tree"
)

const manifests = `
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: InterfaceModule
metadata:
  name: wasi-io
spec:
  package: wasi:io@0.2.0
  srcs: [wit/io/streams.wit]
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: InterfaceModule
metadata:
  name: calc-wit
spec:
  package: example:calc@0.1.0
  world: calculator
  srcs: [wit/calc/calc.wit]
  deps: ["wasi:io@0.2.0"]
  generator:
    language: rust
    with:
      wasi:io@0.2.0: wasi::io
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: InterfaceModule
metadata:
  name: loop-a
spec:
  package: test:a@1.0.0
  srcs: [wit/a.wit]
  deps: ["test:b@1.0.0"]
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: InterfaceModule
metadata:
  name: loop-b
spec:
  package: test:b@1.0.0
  srcs: [wit/b.wit]
  deps: ["test:a@1.0.0"]
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: ComponentProfiles
metadata:
  name: calc
spec:
  component: calc
  defaultProfile: release
  profiles:
  - name: release
    artifact: out/calc.release.wasm
    surface:
      exports: [{name: "calc:api"}]
  - name: debug
    artifact: out/calc.debug.wasm
    surface:
      exports: [{name: "calc:api"}]
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: ComponentProfiles
metadata:
  name: app
spec:
  component: app
  defaultProfile: release
  profiles:
  - name: release
    artifact: out/app.release.wasm
    surface:
      imports: [{name: "calc:api"}, {name: "auth:verify"}]
      exports: [{name: "wasi:cli/run"}]
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: Composition
metadata:
  name: system
spec:
  defaultProfile: release
  instances:
  - name: calc
    component: calc
    profile: debug
  - name: auth
    remote: mirror/auth@^1.0.0
    surface:
      exports: [{name: "auth:verify"}]
  - name: app
    component: app
  plugs: [calc, auth]
  sockets: [app]
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: Composition
metadata:
  name: broken
spec:
  instances:
  - name: app
    component: app
  - name: billing
    remote: mirror/billing@1.0.0
`

type fakeTools struct {
	mu    sync.Mutex
	calls []toolexec.Cmd
}

func (f *fakeTools) Run(_ context.Context, cmd toolexec.Cmd) (toolexec.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	switch cmd.Path {
	case "wac":
		return toolexec.Result{}, os.WriteFile(cmd.Args[4], []byte("\x00asm composed"), 0o644)
	case "wit-bindgen":
		return toolexec.Result{}, os.WriteFile(filepath.Join(cmd.Args[2], "bindings.rs"), []byte("// generated\n"), 0o644)
	}
	return toolexec.Result{}, nil
}

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
}

func newSession(t *testing.T) (*Session, *fakeTools, string) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root,
		"wit/io/streams.wit", "wit/calc/calc.wit", "wit/a.wit", "wit/b.wit",
		"out/calc.release.wasm", "out/calc.debug.wasm", "out/app.release.wasm",
		"mirror/auth/1.0.0.wasm", "mirror/auth/1.3.0.wasm", "mirror/auth/2.0.0.wasm",
	)

	cfg := &config.Config{
		CacheDir:      filepath.Join(root, "cache"),
		WorkDir:       filepath.Join(root, "work"),
		ProfilePolicy: resolverv1alpha1.ProfilePolicyLenient,
		ImportPolicy:  resolverv1alpha1.ImportPolicyPassthrough,
		LinkMode:      resolverv1alpha1.LinkModeLink,
		MirrorDir:     filepath.Join(root, "mirror"),
		DefaultSource: config.SourceMirror,
		Tools:         config.Tools{WitBindgen: "wit-bindgen", Wac: "wac", WasmTools: "wasm-tools"},
	}
	tools := &fakeTools{}
	s, err := New(cfg, WithRunner(tools))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	set := &manifest.Set{}
	require.NoError(t, set.Decode(strings.NewReader(manifests), root))
	require.NoError(t, s.Load(set))
	return s, tools, root
}

func TestBuildTree(t *testing.T) {
	s, _, _ := newSession(t)
	ctx := s.Context(context.Background())

	tr, err := s.BuildTree(ctx, "example:calc@0.1.0")
	require.NoError(t, err)
	require.Equal(t, []string{"wasi:io@0.2.0"}, tr.DepPackages())
	require.Equal(t, map[string]string{"wasi:io@0.2.0": "wasi::io"}, tr.Mapping.Strategies())

	got, err := tree.ReadManifest(tr.Root)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"wasi:io@0.2.0": "deps/wasi.io@0.2.0"}, got)
	require.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.TreesAssembled))
}

func TestBuildTree_CycleIsCounted(t *testing.T) {
	s, _, _ := newSession(t)
	_, err := s.BuildTree(context.Background(), "test:a@1.0.0")
	require.True(t, graph.IsCyclic(err), "got %v", err)
	require.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.ModuleCycles))
	require.Equal(t, 0.0, testutil.ToFloat64(s.Metrics.TreesAssembled))
}

func TestBuildTree_UndeclaredModule(t *testing.T) {
	s, _, _ := newSession(t)
	_, err := s.BuildTree(context.Background(), "example:calc@0.2.0")
	require.ErrorContains(t, err, `"example:calc@0.1.0"`)
}

func TestGenerate_UsesModuleLanguage(t *testing.T) {
	s, tools, root := newSession(t)
	out := filepath.Join(root, "bindings")
	_, err := s.Generate(context.Background(), "example:calc@0.1.0", "", out)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(out, "bindings.rs"))

	require.Len(t, tools.calls, 1)
	require.Equal(t, "rust", tools.calls[0].Args[0])
	require.Contains(t, tools.calls[0].Args, "wasi:io@0.2.0=wasi::io")

	_, err = s.Generate(context.Background(), "wasi:io@0.2.0", "", out)
	require.ErrorContains(t, err, "no generator language")
}

func TestCompose(t *testing.T) {
	s, tools, root := newSession(t)
	out := filepath.Join(root, "dist", "system.wasm")

	plan, err := s.Compose(s.Context(context.Background()), "system", out)
	require.NoError(t, err)
	require.FileExists(t, out)

	calc, _ := plan.Instance("calc")
	require.Equal(t, filepath.Join(root, "out", "calc.debug.wasm"), calc.Artifact)
	auth, _ := plan.Instance("auth")
	require.Equal(t, filepath.Join(root, "mirror", "auth", "1.3.0.wasm"), auth.Artifact)
	require.Equal(t, "mirror:auth", auth.Package)
	require.Len(t, plan.BindingsTo("app"), 2)

	require.Len(t, tools.calls, 1)
	stage := tools.calls[0].Dir
	require.FileExists(t, filepath.Join(stage, composer.ComponentsFile))
	require.FileExists(t, filepath.Join(stage, composer.DepsDir, "mirror", "auth.wasm"))
	require.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.RemoteFetches.WithLabelValues("mirror", "ok")))
}

func TestComposeAll_IsolatesFailures(t *testing.T) {
	s, _, root := newSession(t)
	dist := filepath.Join(root, "dist")

	plans, err := s.ComposeAll(context.Background(), s.Compositions(), dist)
	require.Error(t, err)
	require.ErrorContains(t, err, `composition "broken", instance "billing"`)
	require.NotContains(t, err.Error(), `"system"`)

	require.Contains(t, plans, "system")
	require.NotContains(t, plans, "broken")
	require.FileExists(t, filepath.Join(dist, "system.wasm"))
	require.NoFileExists(t, filepath.Join(dist, "broken.wasm"))
	require.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.Compositions.WithLabelValues("error")))
}

func TestLoad_AggregatesInvalidDocuments(t *testing.T) {
	s, _, _ := newSession(t)
	set := &manifest.Set{
		InterfaceModules: []resolverv1alpha1.InterfaceModule{
			{Spec: resolverv1alpha1.InterfaceModuleSpec{Package: "not a package"}},
			{Spec: resolverv1alpha1.InterfaceModuleSpec{Package: "wasi:io@0.2.0"}},
		},
	}
	err := s.Load(set)
	require.Error(t, err)
	require.ErrorContains(t, err, "not a package")
	require.ErrorContains(t, err, "wasi:io@0.2.0")
}

func TestNew_RejectsUnknownLinkMode(t *testing.T) {
	_, err := New(&config.Config{LinkMode: "hardlink"})
	require.Error(t, err)
}
