package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/pulseengine/component-resolver/internal/config"
	"github.com/pulseengine/component-resolver/internal/manifest"
	"github.com/pulseengine/component-resolver/internal/session"
	"github.com/pulseengine/component-resolver/internal/toolexec"
)

const usage = `usage: component-resolver [flags] <command> [command flags] [args]

commands:
  tree <package>        assemble the interface tree of a module and optionally generate bindings
  compose [name...]     resolve and compose compositions (all when none are named)
  profiles [component]  list registered build profiles
  fetch <ref>           resolve a remote component reference

flags:
`

// fileList collects a repeatable -f flag.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// environment is what run needs from outside the process.
type environment struct {
	stdout io.Writer
	stderr io.Writer
	runner toolexec.Runner
}

func main() {
	env := environment{stdout: os.Stdout, stderr: os.Stderr, runner: toolexec.Exec{}}
	if err := run(signals.SetupSignalHandler(), os.Args[1:], env); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, env environment) error {
	var (
		files       fileList
		envFile     string
		metricsFile string
	)
	fs := flag.NewFlagSet("component-resolver", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.Var(&files, "f", "Manifest file to load; repeatable.")
	fs.StringVar(&envFile, "env-file", ".env", "Environment file read before the process environment.")
	fs.StringVar(&metricsFile, "metrics-file", "", "Write session metrics in Prometheus text format to this file.")

	opts := zap.Options{Development: true, DestWriter: env.stderr, TimeEncoder: zapcore.ISO8601TimeEncoder}
	opts.BindFlags(fs)

	// Configuration is loaded before parsing so flags override it. Its
	// validation error is ignored here; Complete reports it once flags apply.
	cfg, _ := config.Load(envFileFromArgs(args))
	cfg.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Complete(); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	logger := zap.New(zap.UseFlagOptions(&opts))
	ctx = log.IntoContext(ctx, logger)

	set, err := manifest.LoadFiles(files...)
	if err != nil {
		return err
	}
	s, err := session.New(cfg, session.WithRunner(env.runner))
	if err != nil {
		return err
	}
	defer s.Close()
	ctx = s.Context(ctx)
	if err := s.Load(set); err != nil {
		return err
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "tree":
		err = runTree(ctx, s, rest, env)
	case "compose":
		err = runCompose(ctx, s, rest, env)
	case "profiles":
		err = runProfiles(ctx, s, rest, env)
	case "fetch":
		err = runFetch(ctx, s, rest, env)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	if metricsFile != "" {
		if werr := s.Metrics.WriteFile(metricsFile); werr != nil {
			log.FromContext(ctx).Error(werr, "unable to write metrics", "path", metricsFile)
		}
	}
	return err
}

// envFileFromArgs finds -env-file ahead of flag parsing, since its contents
// provide the defaults of the other flags.
func envFileFromArgs(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name := strings.TrimLeft(a, "-")
		if v, ok := strings.CutPrefix(name, "env-file="); ok {
			return v
		}
		if name == "env-file" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ".env"
}
