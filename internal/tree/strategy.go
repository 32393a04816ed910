package tree

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Strategy selects how a file is materialized inside a tree.
type Strategy int

const (
	// Link creates a symlink whose target is relative to the link itself.
	Link Strategy = iota
	// Copy writes a private copy, for filesystems where links do not survive
	// relocation.
	Copy
)

func ParseStrategy(raw string) (Strategy, error) {
	switch raw {
	case "", "link":
		return Link, nil
	case "copy":
		return Copy, nil
	default:
		return Link, fmt.Errorf("unknown link mode %q (want link or copy)", raw)
	}
}

func (s Strategy) String() string {
	if s == Copy {
		return "copy"
	}
	return "link"
}

// Materialize places src at dst. final is where dst will live once the
// enclosing tree is published; relative link targets are computed from it.
func (s Strategy) Materialize(src, dst, final string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if s == Copy {
		return copyFile(src, dst)
	}
	target, err := filepath.Rel(filepath.Dir(final), src)
	if err != nil {
		return fmt.Errorf("relative link target for %s: %w", src, err)
	}
	return os.Symlink(target, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
