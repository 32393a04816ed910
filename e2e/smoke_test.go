package e2e

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const fakeWac = `#!/bin/sh
# Writes a placeholder component to the -o argument.
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
  esac
  shift
done
[ -f plan.wac ] || { echo "plan.wac missing" >&2; exit 2; }
[ -f components.toml ] || { echo "components.toml missing" >&2; exit 2; }
printf '\000asm composed' > "$out"
`

const fakeBindgen = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --out-dir) out="$2"; shift ;;
  esac
  shift
done
echo "// generated" > "$out/bindings.rs"
`

const smokeManifests = `
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: InterfaceModule
metadata:
  name: wasi-io
spec:
  package: wasi:io@0.2.0
  srcs: [wit/streams.wit]
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: InterfaceModule
metadata:
  name: app-wit
spec:
  package: example:app@0.1.0
  srcs: [wit/app.wit]
  deps: ["wasi:io@0.2.0"]
  generator:
    language: rust
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
      imports: [{name: "auth:verify"}]
      exports: [{name: "wasi:cli/run"}]
---
apiVersion: wasm.pulseengine.eu/v1alpha1
kind: Composition
metadata:
  name: system
spec:
  instances:
  - name: auth
    remote: registry/auth@^1.0.0
    surface:
      exports: [{name: "auth:verify"}]
  - name: app
    component: app
  plugs: [auth]
  exports:
  - instance: app
    interface: wasi:cli/run
`

func TestE2ESmoke_ComposeThroughRegistry(t *testing.T) {
	if os.Getenv("RESOLVER_E2E") == "" {
		t.Skip("set RESOLVER_E2E=1 to run the binary smoke test")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go not found in PATH")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}

	repoRoot := findRepoRoot(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bin := t.TempDir()
	resolverBin := filepath.Join(bin, "component-resolver")
	serverBin := filepath.Join(bin, "registry-server")
	fetchBin := filepath.Join(bin, "registry-fetch")
	runOrFail(t, ctx, repoRoot, nil, "go", "build", "-o", resolverBin, ".")
	runOrFail(t, ctx, repoRoot, nil, "go", "build", "-o", serverBin, "./cmd/registry-server")
	runOrFail(t, ctx, repoRoot, nil, "go", "build", "-o", fetchBin, "./cmd/registry-fetch")

	work := t.TempDir()
	writeFile(t, filepath.Join(work, "resolver.yaml"), smokeManifests, 0o644)
	writeFile(t, filepath.Join(work, "wit", "streams.wit"), "package wasi:io@0.2.0;\n", 0o644)
	writeFile(t, filepath.Join(work, "wit", "app.wit"), "package example:app@0.1.0;\n", 0o644)
	writeFile(t, filepath.Join(work, "out", "app.release.wasm"), "\x00asm app", 0o644)
	writeFile(t, filepath.Join(work, "mirror", "auth", "1.0.0.wasm"), "\x00asm auth 1.0", 0o644)
	writeFile(t, filepath.Join(work, "mirror", "auth", "1.4.2.wasm"), "\x00asm auth 1.4", 0o644)
	wac := filepath.Join(bin, "wac")
	bindgen := filepath.Join(bin, "wit-bindgen")
	writeFile(t, wac, fakeWac, 0o755)
	writeFile(t, bindgen, fakeBindgen, 0o755)

	addr := fmt.Sprintf("127.0.0.1:%d", pickFreePort(t))
	server := exec.CommandContext(ctx, serverBin, "-listen", addr, "-root", filepath.Join(work, "mirror"))
	var serverLog bytes.Buffer
	server.Stdout = &serverLog
	server.Stderr = &serverLog
	if err := server.Start(); err != nil {
		t.Fatalf("start registry server: %v", err)
	}
	t.Cleanup(func() {
		_ = server.Process.Kill()
		_ = server.Wait()
		if t.Failed() {
			t.Logf("registry server log:\n%s", serverLog.String())
		}
	})
	waitForPort(t, addr, 30*time.Second)

	env := append(os.Environ(), "RESOLVER_CACHE_DIR="+filepath.Join(work, "cache"))
	global := []string{
		"-f", "resolver.yaml",
		"-env-file", filepath.Join(work, "none.env"),
		"-work-dir", filepath.Join(work, ".resolver"),
		"-registry-addr", addr,
		"-wac", wac,
		"-wit-bindgen", bindgen,
		"-metrics-file", filepath.Join(work, "metrics.prom"),
	}
	cli := func(args ...string) string {
		return runOrFail(t, ctx, work, env, resolverBin, append(append([]string(nil), global...), args...)...)
	}

	out := cli("fetch", "auth@^1.0.0")
	if !strings.Contains(out, "registry/auth@^1.0.0\t1.4.2\t") || !strings.Contains(out, "sha256:") {
		t.Fatalf("unexpected fetch output:\n%s", out)
	}

	cli("compose", "-out", "dist")
	composed, err := os.ReadFile(filepath.Join(work, "dist", "system.wasm"))
	if err != nil {
		t.Fatalf("read composed artifact: %v", err)
	}
	if string(composed) != "\x00asm composed" {
		t.Fatalf("unexpected composed artifact %q", composed)
	}
	stage := filepath.Join(work, ".resolver", "compose", "system")
	if _, err := os.Stat(filepath.Join(stage, "deps", "registry", "auth.wasm")); err != nil {
		t.Fatalf("expected staged remote component: %v", err)
	}

	out = cli("tree", "-generate", "example:app@0.1.0")
	if !strings.Contains(out, "dep\twasi:io@0.2.0") {
		t.Fatalf("unexpected tree output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(work, ".resolver", "bindings", "example.app@0.1.0", "bindings.rs")); err != nil {
		t.Fatalf("expected generated bindings: %v", err)
	}

	metrics, err := os.ReadFile(filepath.Join(work, "metrics.prom"))
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), "resolver_trees_assembled_total 1") {
		t.Fatalf("unexpected metrics:\n%s", metrics)
	}

	copied := filepath.Join(work, "auth.wasm")
	out = runOrFail(t, ctx, work, nil, fetchBin, "-target", addr, "-name", "auth", "-version", "1.0.0", "-out", copied)
	if !strings.Contains(out, "version=1.0.0") {
		t.Fatalf("unexpected registry-fetch output:\n%s", out)
	}
	if b, _ := os.ReadFile(copied); string(b) != "\x00asm auth 1.0" {
		t.Fatalf("unexpected fetched content %q", b)
	}
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}

func waitForPort(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("registry server did not listen on %s within %s", addr, timeout)
}

func pickFreePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// e2e/smoke_test.go -> repo root
	return filepath.Clean(filepath.Join(filepath.Dir(file), ".."))
}

func runOrFail(t *testing.T, ctx context.Context, dir string, env []string, name string, args ...string) string {
	t.Helper()

	out, err := runOut(ctx, dir, env, name, args...)
	if err != nil {
		t.Fatalf("%s %s failed: %v\n%s", name, strings.Join(args, " "), err, out)
	}
	return out
}

func runOut(ctx context.Context, dir string, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
