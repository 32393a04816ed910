package graph

import (
	"errors"
	"fmt"
	"strings"
)

// CyclicDependencyError reports a dependency cycle. Cycle starts and ends on
// the same package, so a self reference reads "a -> a".
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Cycle, " -> ")
}

// Packages returns the distinct members of the cycle.
func (e *CyclicDependencyError) Packages() []string {
	if len(e.Cycle) <= 1 {
		return e.Cycle
	}
	return e.Cycle[:len(e.Cycle)-1]
}

// ModuleNotFoundError reports a dependency on a package no module declares.
type ModuleNotFoundError struct {
	Package    string
	RequiredBy string
	// Candidates are declared packages with the same namespace:name.
	Candidates []string
}

func (e *ModuleNotFoundError) Error() string {
	var b strings.Builder
	if e.RequiredBy == "" {
		fmt.Fprintf(&b, "module %q is not declared", e.Package)
	} else {
		fmt.Fprintf(&b, "module %q depends on %q, which is not declared", e.RequiredBy, e.Package)
	}
	switch len(e.Candidates) {
	case 0:
		fmt.Fprintf(&b, "; add package %q to the declared modules", e.Package)
	case 1:
		fmt.Fprintf(&b, "; declared version is %q, add that package to the dependencies instead", e.Candidates[0])
	default:
		fmt.Fprintf(&b, "; add one of %s to the dependencies instead", strings.Join(quote(e.Candidates), ", "))
	}
	return b.String()
}

// DuplicateModuleError reports two declarations of one package identity.
type DuplicateModuleError struct {
	Package string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("package %q is declared more than once", e.Package)
}

func quote(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// IsCyclic reports whether err is or wraps a CyclicDependencyError.
func IsCyclic(err error) bool {
	var cyc *CyclicDependencyError
	return errors.As(err, &cyc)
}
