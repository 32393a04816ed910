package tree

import "fmt"

// DanglingLinkError means a link in an assembled tree does not resolve. The
// module graph is validated before assembly, so this indicates a bug or a
// concurrent change to the source files.
type DanglingLinkError struct {
	Package string
	Link    string
	Target  string
	Err     error
}

func (e *DanglingLinkError) Error() string {
	return fmt.Sprintf("internal error: dangling link %s -> %s in package %q: %v", e.Link, e.Target, e.Package, e.Err)
}

func (e *DanglingLinkError) Unwrap() error { return e.Err }

// CollisionError means two entries would occupy the same place in the tree.
type CollisionError struct {
	Path  string
	First string
	Other string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("tree collision at %s: %q and %q", e.Path, e.First, e.Other)
}

// CountMismatchError means the tree does not hold exactly one entry per
// source file.
type CountMismatchError struct {
	Want int
	Got  int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("internal error: tree holds %d entries, expected %d", e.Got, e.Want)
}
