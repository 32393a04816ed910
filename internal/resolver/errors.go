package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// CompositionError scopes a failure to one composition and, when known, one
// instance of it.
type CompositionError struct {
	Composition string
	Instance    string
	Err         error
}

func (e *CompositionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "composition %q", e.Composition)
	if e.Instance != "" {
		fmt.Fprintf(&b, ", instance %q", e.Instance)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *CompositionError) Unwrap() error { return e.Err }

// InvalidInstanceError reports a malformed instance declaration.
type InvalidInstanceError struct {
	Instance string
	Reason   string
}

func (e *InvalidInstanceError) Error() string {
	return fmt.Sprintf("instance %q: %s", e.Instance, e.Reason)
}

// UnknownInstanceError reports a reference to an undeclared instance.
type UnknownInstanceError struct {
	Instance string
	// Where names the referring field, e.g. "connection 2 (from)" or "plugs".
	Where string
}

func (e *UnknownInstanceError) Error() string {
	return fmt.Sprintf("%s references undeclared instance %q; add it to instances", e.Where, e.Instance)
}

// MissingInterfaceError reports a connection or export naming an interface
// that is not on the instance's surface.
type MissingInterfaceError struct {
	Instance  string
	Interface string
	// Direction is "import" or "export".
	Direction string
	Available []string
}

func (e *MissingInterfaceError) Error() string {
	msg := fmt.Sprintf("instance %q has no %s %q", e.Instance, e.Direction, e.Interface)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (%ss: %s)", e.Direction, strings.Join(e.Available, ", "))
	}
	return msg
}

// DuplicateBindingError reports an import bound more than once.
type DuplicateBindingError struct {
	Instance string
	Import   string
	First    string
	Second   string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("import %q of instance %q is bound to both %s and %s", e.Import, e.Instance, e.First, e.Second)
}

// UnresolvedImportError reports an import nothing in the composition
// satisfies under the strict import policy.
type UnresolvedImportError struct {
	Instance  string
	Interface string
}

func (e *UnresolvedImportError) Error() string {
	return fmt.Sprintf("import %q of instance %q is not satisfied by any connection or plug; add one, or set hostImports on the instance", e.Interface, e.Instance)
}

// CompositionCycleError reports instances that depend on each other.
type CompositionCycleError struct {
	Cycle []string
}

func (e *CompositionCycleError) Error() string {
	return "instance dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

// PackageConflictError reports two instances claiming one package name,
// in any version, with different artifacts.
type PackageConflictError struct {
	Package   string
	Instances [2]string
}

func (e *PackageConflictError) Error() string {
	return fmt.Sprintf("package %q is used by instances %q and %q with different artifacts; give one of them its own package", e.Package, e.Instances[0], e.Instances[1])
}

// ErrNoDefaultExport is returned when no export is declared and the
// composition does not have exactly one sink instance.
var ErrNoDefaultExport = errors.New("cannot choose a default export; declare spec.exports")
