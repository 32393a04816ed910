package bindgen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pulseengine/component-resolver/internal/toolexec"
	"github.com/pulseengine/component-resolver/internal/tree"
)

func TestArgs_GenerateAllKeepsExplicitEntries(t *testing.T) {
	req := Request{
		Tree: &tree.ResolvedTree{
			Root:    "/t",
			Package: "test:c@1.0.0",
			Mapping: tree.GenerateAll{With: map[string]string{"wasi:io@0.2.0": "wasi::io"}},
		},
		World:    "calc",
		Language: "rust",
	}
	got := Args(req, "/out")
	want := []string{"rust", "--out-dir", "/out", "--world", "calc", "--with", "wasi:io@0.2.0=wasi::io", "--generate-all", "/t"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestArgs_ExplicitMappingOmitsGenerateAll(t *testing.T) {
	req := Request{
		Tree:     &tree.ResolvedTree{Root: "/t", Mapping: tree.ExplicitMapping{}},
		Language: "c",
	}
	got := Args(req, "/out")
	want := []string{"c", "--out-dir", "/out", "/t"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGenerate_PublishesOutputOnSuccess(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bindings")
	g := &Generator{Tool: "wit-bindgen", Runner: toolexec.Func(func(_ context.Context, cmd toolexec.Cmd) (toolexec.Result, error) {
		dir := cmd.Args[2]
		return toolexec.Result{}, os.WriteFile(filepath.Join(dir, "lib.rs"), []byte("// generated\n"), 0o644)
	})}

	err := g.Generate(context.Background(), Request{
		Tree:     &tree.ResolvedTree{Root: "/t", Package: "test:c@1.0.0", Mapping: tree.ExplicitMapping{}},
		Language: "rust",
		OutDir:   out,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "lib.rs")); err != nil {
		t.Fatalf("expected generated file: %v", err)
	}
}

func TestGenerate_WrapsToolFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bindings")
	boom := errors.New("boom")
	g := &Generator{Tool: "wit-bindgen", Runner: toolexec.Func(func(context.Context, toolexec.Cmd) (toolexec.Result, error) {
		return toolexec.Result{}, boom
	})}

	err := g.Generate(context.Background(), Request{
		Tree:     &tree.ResolvedTree{Root: "/t", Package: "test:c@1.0.0", Mapping: tree.ExplicitMapping{}},
		World:    "calc",
		Language: "rust",
		OutDir:   out,
	})
	var ge *GeneratorInvocationError
	if !errors.As(err, &ge) || !errors.Is(err, boom) {
		t.Fatalf("expected GeneratorInvocationError wrapping boom, got %v", err)
	}
	if ge.Package != "test:c@1.0.0" || ge.World != "calc" {
		t.Fatalf("unexpected error fields %+v", ge)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected no output directory after failure")
	}
}
