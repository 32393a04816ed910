// Package resolver turns a Composition into a Plan: every instance bound to an
// artifact and a surface, explicit connections checked, socket imports matched
// against plugs, instances ordered and exports chosen.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	resolverv1alpha1 "github.com/pulseengine/component-resolver/api/v1alpha1"
	"github.com/pulseengine/component-resolver/internal/graph"
	"github.com/pulseengine/component-resolver/internal/metrics"
	"github.com/pulseengine/component-resolver/internal/pkgref"
	"github.com/pulseengine/component-resolver/internal/profile"
	"github.com/pulseengine/component-resolver/internal/remote"
	"github.com/pulseengine/component-resolver/internal/surface"
)

// Resolver builds composition plans. Policies set here apply unless the
// Composition overrides them.
type Resolver struct {
	Profiles *profile.Tracker
	Remote   *remote.Resolver
	// Prober reads surfaces of artifacts that declare none. Optional.
	Prober  surface.Prober
	Metrics *metrics.Collectors

	ProfilePolicy resolverv1alpha1.ProfilePolicy
	ImportPolicy  resolverv1alpha1.ImportPolicy
}

// Resolve builds the plan for comp. Any failure is returned as a
// CompositionError naming comp and, where known, the offending instance.
func (r *Resolver) Resolve(ctx context.Context, comp *resolverv1alpha1.Composition) (*Plan, error) {
	logger := log.FromContext(ctx).WithValues("composition", comp.Name)
	ctx = log.IntoContext(ctx, logger)

	plan, err := r.resolve(ctx, comp)
	if r.Metrics != nil {
		r.Metrics.Compositions.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		return nil, err
	}
	logger.Info("resolved composition", "instances", len(plan.Instances), "bindings", len(plan.Bindings), "unresolved", len(plan.Diagnostics.Unresolved))
	return plan, nil
}

func (r *Resolver) resolve(ctx context.Context, comp *resolverv1alpha1.Composition) (*Plan, error) {
	spec := &comp.Spec
	fail := func(instance string, err error) error {
		return &CompositionError{Composition: comp.Name, Instance: instance, Err: err}
	}

	if err := validateInstances(spec.Instances); err != nil {
		return nil, fail("", err)
	}

	instances, fallbacks, err := r.resolveInstances(ctx, comp)
	if err != nil {
		return nil, err
	}
	if err := checkPackages(instances); err != nil {
		return nil, fail("", err)
	}

	plan := &Plan{Composition: comp.Name, Package: spec.Package}
	plan.Diagnostics.ProfileFallbacks = fallbacks
	if plan.Package == "" {
		plan.Package = "local:" + comp.Name
	}

	byName := make(map[string]*Instance, len(instances))
	for i := range instances {
		byName[instances[i].Name] = &instances[i]
	}

	bound, err := bindConnections(spec.Connections, byName)
	if err != nil {
		return nil, fail("", err)
	}

	plugBindings, err := matchPlugs(spec.Plugs, spec.Sockets, instances, byName, bound)
	if err != nil {
		return nil, fail("", err)
	}
	bindings := append(bindingsOf(bound), plugBindings...)

	unresolved := unresolvedImports(instances, bindings)
	if r.importPolicy(spec) == resolverv1alpha1.ImportPolicyStrict {
		var errs []error
		first := ""
		for _, u := range unresolved {
			// Declaring hostImports opts an instance out of the strict check.
			if byName[u.Instance].HostImports {
				continue
			}
			if first == "" {
				first = u.Instance
			}
			errs = append(errs, &UnresolvedImportError{Instance: u.Instance, Interface: u.Interface})
		}
		if len(errs) > 0 {
			return nil, fail(first, utilerrors.NewAggregate(errs))
		}
	}
	plan.Diagnostics.Unresolved = unresolved
	if r.Metrics != nil {
		r.Metrics.PlugBindings.Add(float64(len(plugBindings)))
		r.Metrics.UnresolvedImports.Set(float64(len(unresolved)))
	}
	markHostImports(instances, unresolved)

	ordered, err := order(instances, bindings)
	if err != nil {
		return nil, fail("", err)
	}
	plan.Instances = ordered
	plan.Bindings = sortBindings(bindings, ordered)

	exports, err := chooseExports(spec.Exports, plan)
	if err != nil {
		return nil, fail("", err)
	}
	plan.Exports = exports
	return plan, nil
}

func (r *Resolver) profilePolicy(spec *resolverv1alpha1.CompositionSpec) resolverv1alpha1.ProfilePolicy {
	if spec.ProfilePolicy != "" {
		return spec.ProfilePolicy
	}
	if r.ProfilePolicy != "" {
		return r.ProfilePolicy
	}
	return resolverv1alpha1.ProfilePolicyLenient
}

func (r *Resolver) importPolicy(spec *resolverv1alpha1.CompositionSpec) resolverv1alpha1.ImportPolicy {
	if spec.ImportPolicy != "" {
		return spec.ImportPolicy
	}
	if r.ImportPolicy != "" {
		return r.ImportPolicy
	}
	return resolverv1alpha1.ImportPolicyPassthrough
}

func validateInstances(specs []resolverv1alpha1.InstanceSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("no instances declared")
	}
	seen := sets.New[string]()
	var errs []error
	for _, in := range specs {
		switch {
		case !validName(in.Name):
			errs = append(errs, &InvalidInstanceError{Instance: in.Name, Reason: "name must be lowercase kebab-case"})
		case seen.Has(in.Name):
			errs = append(errs, &InvalidInstanceError{Instance: in.Name, Reason: "declared more than once"})
		case (in.Component == "") == (in.Remote == ""):
			errs = append(errs, &InvalidInstanceError{Instance: in.Name, Reason: "exactly one of component or remote must be set"})
		case in.Remote != "" && in.Profile != "":
			errs = append(errs, &InvalidInstanceError{Instance: in.Name, Reason: "profile applies to local components only"})
		}
		seen.Insert(in.Name)
	}
	return utilerrors.NewAggregate(errs)
}

func validName(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}

// resolveInstances binds every instance to an artifact and surface in
// parallel. Results keep declaration order.
func (r *Resolver) resolveInstances(ctx context.Context, comp *resolverv1alpha1.Composition) ([]Instance, []ProfileFallback, error) {
	specs := comp.Spec.Instances
	out := make([]Instance, len(specs))
	fallbacks := make([]*ProfileFallback, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	for i := range specs {
		i := i
		g.Go(func() error {
			inst, fb, err := r.resolveInstance(gctx, comp, &specs[i])
			if err != nil {
				return &CompositionError{Composition: comp.Name, Instance: specs[i].Name, Err: err}
			}
			out[i], fallbacks[i] = inst, fb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	var fbs []ProfileFallback
	for _, fb := range fallbacks {
		if fb != nil {
			fbs = append(fbs, *fb)
		}
	}
	return out, fbs, nil
}

func (r *Resolver) resolveInstance(ctx context.Context, comp *resolverv1alpha1.Composition, spec *resolverv1alpha1.InstanceSpec) (Instance, *ProfileFallback, error) {
	inst := Instance{
		Name:        spec.Name,
		Package:     spec.Package,
		Component:   spec.Component,
		Remote:      spec.Remote,
		HostImports: spec.HostImports,
	}
	var declared *resolverv1alpha1.SurfaceSpec
	var fallback *ProfileFallback

	if spec.Remote != "" {
		if r.Remote == nil {
			return Instance{}, nil, fmt.Errorf("remote reference %q but no remote sources are configured", spec.Remote)
		}
		ref, err := pkgref.ParseRemoteRef(spec.Remote)
		if err != nil {
			return Instance{}, nil, err
		}
		res, err := r.Remote.Resolve(ctx, ref)
		if err != nil {
			return Instance{}, nil, err
		}
		inst.Artifact, inst.Digest = res.Path, res.Digest
		if inst.Package == "" {
			inst.Package = res.Ref.Package()
		}
	} else {
		requested := spec.Profile
		if requested == "" {
			requested = comp.Spec.DefaultProfile
		}
		sel, err := r.Profiles.Get(ctx, spec.Component, requested, r.profilePolicy(&comp.Spec))
		if err != nil {
			return Instance{}, nil, err
		}
		inst.Artifact, inst.Profile = sel.Path, sel.Profile
		declared = sel.Surface
		if sel.FellBack {
			fallback = &ProfileFallback{Instance: spec.Name, Component: spec.Component, Requested: sel.Requested, Substituted: sel.Profile}
			if r.Metrics != nil {
				r.Metrics.ProfileFallbacks.WithLabelValues(spec.Component).Inc()
			}
		}
		if r.Metrics != nil {
			r.Metrics.ProfileSelections.WithLabelValues(spec.Component, sel.Profile).Inc()
		}
		if inst.Package == "" {
			inst.Package = "local:" + spec.Name
		}
	}
	if _, err := pkgref.ParsePackageID(inst.Package); err != nil {
		return Instance{}, nil, err
	}

	switch {
	case !spec.Surface.IsZero():
		inst.Surface = surface.FromSpec(spec.Surface)
	case !declared.IsZero():
		inst.Surface = surface.FromSpec(declared)
	case r.Prober != nil:
		s, err := r.Prober.Probe(ctx, inst.Artifact)
		if err != nil {
			return Instance{}, nil, err
		}
		inst.Surface = s
	default:
		log.FromContext(ctx).V(1).Info("instance has no known surface", "instance", spec.Name)
	}
	return inst, fallback, nil
}

// checkPackages rejects two instances staging different artifacts under one
// package. The composer looks packages up by namespace and name only, so two
// versions of a package conflict as well.
func checkPackages(instances []Instance) error {
	owner := make(map[string]*Instance, len(instances))
	for i := range instances {
		in := &instances[i]
		id, err := pkgref.ParsePackageID(in.Package)
		if err != nil {
			return err
		}
		key := id.Unversioned()
		if prev, ok := owner[key]; ok && prev.Artifact != in.Artifact {
			return &PackageConflictError{Package: key, Instances: [2]string{prev.Name, in.Name}}
		}
		owner[key] = in
	}
	return nil
}

type importKey struct {
	instance string
	name     string
}

// bindConnections checks every explicit connection and returns the bindings
// keyed by destination import. All problems are reported together.
func bindConnections(conns []resolverv1alpha1.ConnectionSpec, byName map[string]*Instance) (map[importKey]Binding, error) {
	bound := make(map[importKey]Binding, len(conns))
	var errs []error
	for i, c := range conns {
		from, ok := byName[c.From]
		if !ok {
			errs = append(errs, &UnknownInstanceError{Instance: c.From, Where: fmt.Sprintf("connection %d (from)", i)})
			continue
		}
		to, ok := byName[c.To]
		if !ok {
			errs = append(errs, &UnknownInstanceError{Instance: c.To, Where: fmt.Sprintf("connection %d (to)", i)})
			continue
		}
		imp := c.Import
		if imp == "" {
			imp = c.Export
		}
		if _, ok := from.Surface.Export(c.Export); !ok {
			errs = append(errs, &MissingInterfaceError{Instance: c.From, Interface: c.Export, Direction: "export", Available: from.Surface.ExportNames()})
			continue
		}
		if _, ok := to.Surface.Import(imp); !ok {
			errs = append(errs, &MissingInterfaceError{Instance: c.To, Interface: imp, Direction: "import", Available: to.Surface.ImportNames()})
			continue
		}
		key := importKey{instance: c.To, name: imp}
		b := Binding{From: c.From, Export: c.Export, To: c.To, Import: imp, Origin: OriginConnection}
		if prev, dup := bound[key]; dup {
			errs = append(errs, &DuplicateBindingError{Instance: c.To, Import: imp, First: prev.From + "." + prev.Export, Second: c.From + "." + c.Export})
			continue
		}
		bound[key] = b
	}
	return bound, utilerrors.NewAggregate(errs)
}

// matchPlugs binds each import of each socket that no connection already
// binds to the first plug, in plug list order, exporting a compatible
// interface. One plug export may serve many sockets; an import gets at most
// one plug. Without explicit sockets every non-plug instance is a socket.
func matchPlugs(plugs, sockets []string, instances []Instance, byName map[string]*Instance, bound map[importKey]Binding) ([]Binding, error) {
	if len(plugs) == 0 && len(sockets) == 0 {
		return nil, nil
	}
	var errs []error
	for _, p := range plugs {
		if _, ok := byName[p]; !ok {
			errs = append(errs, &UnknownInstanceError{Instance: p, Where: "plugs"})
		}
	}
	for _, s := range sockets {
		if _, ok := byName[s]; !ok {
			errs = append(errs, &UnknownInstanceError{Instance: s, Where: "sockets"})
		}
	}
	if len(errs) > 0 {
		return nil, utilerrors.NewAggregate(errs)
	}

	if len(sockets) == 0 {
		isPlug := sets.New(plugs...)
		for _, in := range instances {
			if !isPlug.Has(in.Name) {
				sockets = append(sockets, in.Name)
			}
		}
	}

	var out []Binding
	for _, s := range sockets {
		socket := byName[s]
		for _, imp := range socket.Surface.Imports {
			if _, ok := bound[importKey{instance: s, name: imp.Name}]; ok {
				continue
			}
			for _, p := range plugs {
				if p == s {
					continue
				}
				if exp, ok := byName[p].Surface.Export(imp.Name); ok && surface.Compatible(exp, imp) {
					out = append(out, Binding{From: p, Export: exp.Name, To: s, Import: imp.Name, Origin: OriginPlug})
					break
				}
			}
		}
	}
	return out, nil
}

// unresolvedImports lists, in instance declaration order, every import of
// every instance that no binding satisfies.
func unresolvedImports(instances []Instance, bindings []Binding) []UnresolvedImport {
	satisfied := sets.New[importKey]()
	for _, b := range bindings {
		satisfied.Insert(importKey{instance: b.To, name: b.Import})
	}
	var out []UnresolvedImport
	for _, in := range instances {
		for _, imp := range in.Surface.Imports {
			if !satisfied.Has(importKey{instance: in.Name, name: imp.Name}) {
				out = append(out, UnresolvedImport{Instance: in.Name, Interface: imp.Name})
			}
		}
	}
	return out
}

func bindingsOf(bound map[importKey]Binding) []Binding {
	out := make([]Binding, 0, len(bound))
	for _, b := range bound {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Import < out[j].Import
	})
	return out
}

// markHostImports sets HostImports on every instance left with an import
// for the host.
func markHostImports(instances []Instance, unresolved []UnresolvedImport) {
	open := sets.New[string]()
	for _, u := range unresolved {
		open.Insert(u.Instance)
	}
	for i := range instances {
		if open.Has(instances[i].Name) {
			instances[i].HostImports = true
		}
	}
}

// order returns instances with every provider before its consumers.
func order(instances []Instance, bindings []Binding) ([]Instance, error) {
	g := graph.NewDigraph()
	byName := make(map[string]Instance, len(instances))
	for _, in := range instances {
		g.AddNode(in.Name)
		byName[in.Name] = in
	}
	for _, b := range bindings {
		if err := g.AddEdge(b.To, b.From); err != nil {
			return nil, err
		}
	}
	names, cycle := g.TopoOrder()
	if cycle != nil {
		return nil, &CompositionCycleError{Cycle: cycle}
	}
	out := make([]Instance, len(names))
	for i, n := range names {
		out[i] = byName[n]
	}
	return out, nil
}

func sortBindings(bindings []Binding, ordered []Instance) []Binding {
	pos := make(map[string]int, len(ordered))
	for i, in := range ordered {
		pos[in.Name] = i
	}
	sort.SliceStable(bindings, func(i, j int) bool {
		a, b := bindings[i], bindings[j]
		if pos[a.To] != pos[b.To] {
			return pos[a.To] < pos[b.To]
		}
		return a.Import < b.Import
	})
	return bindings
}

// chooseExports validates declared exports, or exports the single sink
// instance whole when none are declared.
func chooseExports(declared []resolverv1alpha1.ExportSpec, plan *Plan) ([]Export, error) {
	if len(declared) > 0 {
		var errs []error
		out := make([]Export, 0, len(declared))
		for _, e := range declared {
			in, ok := plan.Instance(e.Instance)
			if !ok {
				errs = append(errs, &UnknownInstanceError{Instance: e.Instance, Where: "exports"})
				continue
			}
			if e.Interface != "" {
				if _, ok := in.Surface.Export(e.Interface); !ok {
					errs = append(errs, &MissingInterfaceError{Instance: e.Instance, Interface: e.Interface, Direction: "export", Available: in.Surface.ExportNames()})
					continue
				}
			}
			out = append(out, Export{Instance: e.Instance, Interface: e.Interface})
		}
		return out, utilerrors.NewAggregate(errs)
	}

	consumed := sets.New[string]()
	for _, b := range plan.Bindings {
		consumed.Insert(b.From)
	}
	var sinks []string
	for _, in := range plan.Instances {
		if !consumed.Has(in.Name) {
			sinks = append(sinks, in.Name)
		}
	}
	if len(sinks) != 1 {
		return nil, fmt.Errorf("%w (candidate instances: %s)", ErrNoDefaultExport, strings.Join(sinks, ", "))
	}
	return []Export{{Instance: sinks[0]}}, nil
}
