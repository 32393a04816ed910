package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pulseengine/component-resolver/internal/pkgref"
)

// DirSource serves components from a local mirror laid out as
// <root>/<name>/<version>.wasm.
type DirSource struct {
	Root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

// Versions lists the versions mirrored for name.
func (d *DirSource) Versions(name string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.Root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q is not mirrored under %s", ErrNotFound, name, d.Root)
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wasm") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".wasm"))
	}
	return out, nil
}

// Lookup implements registry.Store.
func (d *DirSource) Lookup(_ context.Context, name, version string) (string, string, error) {
	available, err := d.Versions(name)
	if err != nil {
		return "", "", err
	}
	v, err := pickVersion(name, version, available)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(d.Root, name, v+".wasm"), v, nil
}

// Fetch returns the mirrored file itself; nothing is copied.
func (d *DirSource) Fetch(ctx context.Context, ref pkgref.RemoteRef, _ string) (Fetched, error) {
	path, v, err := d.Lookup(ctx, ref.Name, ref.Version)
	if err != nil {
		return Fetched{}, err
	}
	return Fetched{Path: path, Version: v}, nil
}
