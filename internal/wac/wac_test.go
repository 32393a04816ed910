package wac

import (
	"testing"

	"github.com/pulseengine/component-resolver/internal/resolver"
)

func TestRender(t *testing.T) {
	plan := &resolver.Plan{
		Package: "local:system",
		Instances: []resolver.Instance{
			{Name: "stdout-logger", Package: "local:stdout-logger"},
			{Name: "calc", Package: "local:calc"},
			{Name: "app", Package: "local:app", HostImports: true},
		},
		Bindings: []resolver.Binding{
			{From: "calc", Export: "calc:api", To: "app", Import: "calc:api", Origin: resolver.OriginConnection},
			{From: "stdout-logger", Export: "logger:write", To: "app", Import: "logger:write", Origin: resolver.OriginPlug},
		},
		Exports: []resolver.Export{{Instance: "app", Interface: "wasi:cli/run"}, {Instance: "calc"}},
	}

	want := `package local:system;

let stdout-logger = new local:stdout-logger {};

let calc = new local:calc {};

let app = new local:app {
    "calc:api": calc["calc:api"],
    "logger:write": stdout-logger["logger:write"],
    ...
};

export app["wasi:cli/run"];
export calc...;
`
	if got := string(Render(plan)); got != want {
		t.Fatalf("unexpected source:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	plan := &resolver.Plan{
		Package:   "local:one",
		Instances: []resolver.Instance{{Name: "a", Package: "registry:auth"}},
		Exports:   []resolver.Export{{Instance: "a"}},
	}
	first := string(Render(plan))
	for i := 0; i < 5; i++ {
		if got := string(Render(plan)); got != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}
