package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pulseengine/component-resolver/internal/pkgref"
	"github.com/pulseengine/component-resolver/internal/semver"
)

// Fetched is what a Source produced for a reference.
type Fetched struct {
	// Path is a local file holding the component.
	Path string
	// Version is the concrete version selected.
	Version string
}

// Source fetches components. cacheDir is a directory private to the source
// within the session cache; sources that already hold local files may ignore
// it.
type Source interface {
	Fetch(ctx context.Context, ref pkgref.RemoteRef, cacheDir string) (Fetched, error)
}

// pickVersion returns the highest of available satisfying constraint.
func pickVersion(name, constraint string, available []string) (string, error) {
	c, err := semver.ParseConstraint(constraint)
	if err != nil {
		return "", err
	}
	candidates := make([]semver.Version, 0, len(available))
	for _, raw := range available {
		v, err := semver.ParseVersion(raw)
		if err != nil {
			continue
		}
		candidates = append(candidates, v)
	}
	best, ok := semver.MaxSatisfying(c, candidates)
	if !ok {
		return "", fmt.Errorf("%w: no version of %q satisfies %q (have %s)", ErrNotFound, name, constraint, strings.Join(available, ", "))
	}
	return best.String(), nil
}

// cachePath is where a downloaded component is stored.
func cachePath(cacheDir string, ref pkgref.RemoteRef, version string) string {
	return filepath.Join(cacheDir, ref.Name, version+".wasm")
}

// writeAtomic writes content to path through a temporary sibling.
func writeAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}
