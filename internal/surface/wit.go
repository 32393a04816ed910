package surface

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/pulseengine/component-resolver/internal/digest"
	"github.com/pulseengine/component-resolver/internal/toolexec"
)

// WITProber runs `wasm-tools component wit --json` on an artifact and reads
// the component's world from the result.
type WITProber struct {
	Tool   string
	Runner toolexec.Runner
}

func (p *WITProber) Probe(ctx context.Context, artifact string) (Surface, error) {
	res, err := p.Runner.Run(ctx, toolexec.Cmd{Path: p.Tool, Args: []string{"component", "wit", "--json", artifact}})
	if err != nil {
		return Surface{}, fmt.Errorf("inspect %s: %w", artifact, err)
	}
	s, err := DecodeWIT(res.Stdout)
	if err != nil {
		return Surface{}, fmt.Errorf("inspect %s: %w", artifact, err)
	}
	return s, nil
}

// DecodeWIT extracts the surface of the component world from a JSON encoded
// WIT resolve. The component world is the one named "root", or the last world
// when there is none.
func DecodeWIT(data []byte) (Surface, error) {
	res, err := wit.DecodeJSON(bytes.NewReader(data))
	if err != nil {
		return Surface{}, fmt.Errorf("decode wit json: %w", err)
	}
	if len(res.Worlds) == 0 {
		return Surface{}, fmt.Errorf("wit json contains no world")
	}
	w := res.Worlds[len(res.Worlds)-1]
	for _, candidate := range res.Worlds {
		if candidate.Name == "root" {
			w = candidate
		}
	}

	var out Surface
	for name, item := range w.Imports.All() {
		if i, ok := interfaceOf(name, item); ok {
			out.Imports = append(out.Imports, i)
		}
	}
	for name, item := range w.Exports.All() {
		if i, ok := interfaceOf(name, item); ok {
			out.Exports = append(out.Exports, i)
		}
	}
	return out, nil
}

// interfaceOf names a world item that is an interface. Functions and types
// at world level are not part of the connectable surface.
func interfaceOf(key string, item wit.WorldItem) (Interface, bool) {
	ref, ok := item.(*wit.InterfaceRef)
	if !ok || ref.Interface == nil {
		return Interface{}, false
	}
	iface := ref.Interface
	name := key
	if iface.Name != nil && iface.Package != nil {
		id := iface.Package.Name
		name = id.Namespace + ":" + id.Package + "/" + *iface.Name
		if id.Version != nil {
			name += "@" + id.Version.String()
		}
	}
	var fns []string
	for fn := range iface.Functions.All() {
		fns = append(fns, fn)
	}
	sort.Strings(fns)
	return Interface{Name: name, Type: digest.Bytes([]byte(strings.Join(fns, "\n")))}, true
}
