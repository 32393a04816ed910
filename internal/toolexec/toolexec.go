// Package toolexec runs the external tools the resolver drives: the binding
// generator, the composer and the component inspector.
package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Cmd is one external tool invocation.
type Cmd struct {
	Path string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env []string
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes a Cmd. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// ExitError is returned when the tool ran and failed.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Cmd, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Exec runs commands as child processes.
type Exec struct{}

func (Exec) Run(ctx context.Context, cmd Cmd) (Result, error) {
	logger := log.FromContext(ctx)
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	logger.V(1).Info("running tool", "cmd", cmd.String())
	err := c.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		code := -1
		if ee, ok := err.(*exec.ExitError); ok {
			code = ee.ExitCode()
		}
		return res, &ExitError{Cmd: cmd.String(), Code: code, Stderr: stderr.String(), Err: err}
	}
	return res, nil
}

// Func adapts a function to Runner.
type Func func(ctx context.Context, cmd Cmd) (Result, error)

func (f Func) Run(ctx context.Context, cmd Cmd) (Result, error) { return f(ctx, cmd) }
