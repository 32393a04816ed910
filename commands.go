package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"sigs.k8s.io/yaml"

	"github.com/pulseengine/component-resolver/internal/pkgref"
	"github.com/pulseengine/component-resolver/internal/resolver"
	"github.com/pulseengine/component-resolver/internal/session"
	"github.com/pulseengine/component-resolver/internal/tree"
	"github.com/pulseengine/component-resolver/internal/wac"
)

var warnStyle = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)

func subcommand(name string, env environment) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func runTree(ctx context.Context, s *session.Session, args []string, env environment) error {
	fs := subcommand("tree", env)
	generate := fs.Bool("generate", false, "Run the binding generator on the assembled tree.")
	language := fs.String("language", "", "Generator language; defaults to the module's generator.language.")
	out := fs.String("out", "", "Bindings output directory; defaults to <work-dir>/bindings/<package>.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("tree: expected one package identity, got %d arguments", fs.NArg())
	}
	pkg := fs.Arg(0)

	var (
		t   *tree.ResolvedTree
		err error
	)
	if *generate {
		dir := *out
		if dir == "" {
			id, perr := pkgref.ParsePackageID(pkg)
			if perr != nil {
				return perr
			}
			dir = filepath.Join(s.Config.WorkDir, "bindings", id.DirName())
		}
		t, err = s.Generate(ctx, pkg, *language, dir)
		if err == nil {
			fmt.Fprintf(env.stdout, "bindings\t%s\n", dir)
		}
	} else {
		t, err = s.BuildTree(ctx, pkg)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "tree\t%s\n", t.Root)
	for _, d := range t.Deps {
		fmt.Fprintf(env.stdout, "dep\t%s\t%s\n", d.Package, d.Dir)
	}
	if unmapped := tree.Unmapped(t.Mapping, t.DepPackages()); len(unmapped) > 0 {
		fmt.Fprintf(env.stdout, "generate\t%s\n", strings.Join(unmapped, ","))
	}
	return nil
}

func runCompose(ctx context.Context, s *session.Session, args []string, env environment) error {
	fs := subcommand("compose", env)
	outDir := fs.String("out", "dist", "Directory receiving <composition>.wasm.")
	printPlan := fs.Bool("print-plan", false, "Print the resolved plan instead of composing.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		names = s.Compositions()
	}
	if len(names) == 0 {
		return fmt.Errorf("compose: no compositions declared")
	}

	if *printPlan {
		for i, name := range names {
			plan, err := s.Resolve(ctx, name)
			if err != nil {
				return err
			}
			doc, err := yaml.Marshal(planDocumentOf(plan))
			if err != nil {
				return err
			}
			if i > 0 {
				fmt.Fprintln(env.stdout, "---")
			}
			env.stdout.Write(doc)
		}
		return nil
	}

	plans, err := s.ComposeAll(ctx, names, *outDir)
	for _, name := range names {
		plan, ok := plans[name]
		if !ok {
			continue
		}
		fmt.Fprintf(env.stdout, "composed\t%s\t%s\n", name, filepath.Join(*outDir, name+".wasm"))
		printDiagnostics(env, plan)
	}
	return err
}

func printDiagnostics(env environment, plan *resolver.Plan) {
	for _, fb := range plan.Diagnostics.ProfileFallbacks {
		fmt.Fprintf(env.stdout, "%s instance %s: profile %q of %s not built, using %q\n",
			warnStyle.Sprint("warning"), fb.Instance, fb.Requested, fb.Component, fb.Substituted)
	}
	for _, u := range plan.Diagnostics.Unresolved {
		fmt.Fprintf(env.stdout, "host import\t%s\t%s\n", u.Instance, u.Interface)
	}
}

type planDocument struct {
	Composition string             `json:"composition"`
	Package     string             `json:"package"`
	Instances   []planInstance     `json:"instances"`
	Bindings    []resolver.Binding `json:"bindings,omitempty"`
	Fallbacks   []string           `json:"profileFallbacks,omitempty"`
	Unresolved  []string           `json:"unresolvedImports,omitempty"`
	Source      string             `json:"source"`
}

type planInstance struct {
	Name        string `json:"name"`
	Package     string `json:"package"`
	Artifact    string `json:"artifact"`
	Profile     string `json:"profile,omitempty"`
	Remote      string `json:"remote,omitempty"`
	Digest      string `json:"digest,omitempty"`
	HostImports bool   `json:"hostImports,omitempty"`
}

func planDocumentOf(plan *resolver.Plan) planDocument {
	doc := planDocument{
		Composition: plan.Composition,
		Package:     plan.Package,
		Bindings:    plan.Bindings,
		Source:      string(wac.Render(plan)),
	}
	for _, in := range plan.Instances {
		doc.Instances = append(doc.Instances, planInstance{
			Name:        in.Name,
			Package:     in.Package,
			Artifact:    in.Artifact,
			Profile:     in.Profile,
			Remote:      in.Remote,
			Digest:      in.Digest,
			HostImports: in.HostImports,
		})
	}
	for _, fb := range plan.Diagnostics.ProfileFallbacks {
		doc.Fallbacks = append(doc.Fallbacks, fmt.Sprintf("%s: %s -> %s", fb.Instance, fb.Requested, fb.Substituted))
	}
	for _, u := range plan.Diagnostics.Unresolved {
		doc.Unresolved = append(doc.Unresolved, u.Instance+": "+u.Interface)
	}
	return doc
}

func runProfiles(_ context.Context, s *session.Session, args []string, env environment) error {
	fs := subcommand("profiles", env)
	writeDir := fs.String("write", "", "Write <component>.profiles.yaml manifests into this directory.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	components := fs.Args()
	if len(components) == 0 {
		components = s.Profiles.Components()
	}

	data := pterm.TableData{{"COMPONENT", "PROFILE", "DEFAULT", "ARTIFACT"}}
	for _, c := range components {
		arts, def, err := s.Profiles.Profiles(c)
		if err != nil {
			return err
		}
		for _, a := range arts {
			mark := ""
			if a.Profile == def {
				mark = "*"
			}
			data = append(data, []string{c, a.Profile, mark, a.Path})
		}
		if *writeDir != "" {
			if err := s.Profiles.WriteManifest(c, filepath.Join(*writeDir, c+".profiles.yaml")); err != nil {
				return err
			}
		}
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, table)
	return nil
}

func runFetch(ctx context.Context, s *session.Session, args []string, env environment) error {
	fs := subcommand("fetch", env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("fetch: expected at least one remote reference")
	}
	for _, raw := range fs.Args() {
		ref, err := pkgref.ParseRemoteRef(raw)
		if err != nil {
			return err
		}
		res, err := s.Remote.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "%s\t%s\t%s\t%s\n", res.Ref.String(), res.Version, res.Path, res.Digest)
	}
	return nil
}
