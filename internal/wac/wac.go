// Package wac renders a composition plan as composer source text.
package wac

import (
	"bytes"
	"fmt"

	"github.com/pulseengine/component-resolver/internal/resolver"
)

// FileName is the name the composer expects the rendered source under.
const FileName = "plan.wac"

// Render returns the composition source for plan. The output depends only on
// the plan, so equal plans render byte-identical text.
func Render(plan *resolver.Plan) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "package %s;\n", plan.Package)

	for _, in := range plan.Instances {
		b.WriteByte('\n')
		args := plan.BindingsTo(in.Name)
		if len(args) == 0 && !in.HostImports {
			fmt.Fprintf(&b, "let %s = new %s {};\n", in.Name, in.Package)
			continue
		}
		fmt.Fprintf(&b, "let %s = new %s {\n", in.Name, in.Package)
		for _, a := range args {
			fmt.Fprintf(&b, "    %q: %s[%q],\n", a.Import, a.From, a.Export)
		}
		if in.HostImports {
			b.WriteString("    ...\n")
		}
		b.WriteString("};\n")
	}

	if len(plan.Exports) > 0 {
		b.WriteByte('\n')
	}
	for _, e := range plan.Exports {
		if e.Interface == "" {
			fmt.Fprintf(&b, "export %s...;\n", e.Instance)
			continue
		}
		fmt.Fprintf(&b, "export %s[%q];\n", e.Instance, e.Interface)
	}
	return b.Bytes()
}
