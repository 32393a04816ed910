package tree

import "testing"

func TestDecideMapping(t *testing.T) {
	deps := []string{"wasi:io@0.2.0", "wasi:clocks@0.2.0"}

	m := DecideMapping(deps, map[string]string{"wasi:io@0.2.0": "a", "wasi:clocks@0.2.0": "b", "other:x": "c"})
	em, ok := m.(ExplicitMapping)
	if !ok {
		t.Fatalf("expected ExplicitMapping, got %T", m)
	}
	if len(em) != 2 {
		t.Fatalf("expected unrelated entries dropped, got %v", em)
	}

	if _, ok := DecideMapping(deps, nil).(GenerateAll); !ok {
		t.Fatalf("expected GenerateAll without a mapping")
	}
	if _, ok := DecideMapping(nil, nil).(ExplicitMapping); !ok {
		t.Fatalf("expected ExplicitMapping for a tree without dependencies")
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != Link {
		t.Fatalf("expected default Link, got %v (%v)", s, err)
	}
	if s, err := ParseStrategy("copy"); err != nil || s != Copy {
		t.Fatalf("expected Copy, got %v (%v)", s, err)
	}
	if _, err := ParseStrategy("hardlink"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
