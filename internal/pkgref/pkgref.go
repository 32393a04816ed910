// Package pkgref parses the two reference forms the resolver deals with:
// interface package identities ("namespace:name@version") and remote component
// references ("[source/]name@version").
package pkgref

import (
	"fmt"
	"strings"

	"github.com/pulseengine/component-resolver/internal/semver"
)

// PackageID identifies an interface package. Version is optional.
type PackageID struct {
	Namespace string
	Name      string
	Version   string
}

// ParsePackageID parses "namespace:name" or "namespace:name@version".
func ParsePackageID(raw string) (PackageID, error) {
	s := strings.TrimSpace(raw)
	var id PackageID
	if at := strings.LastIndex(s, "@"); at >= 0 {
		id.Version = s[at+1:]
		s = s[:at]
		if id.Version == "" {
			return PackageID{}, fmt.Errorf("package %q: empty version", raw)
		}
		if _, err := semver.ParseVersion(id.Version); err != nil {
			return PackageID{}, fmt.Errorf("package %q: %w", raw, err)
		}
	}
	ns, name, ok := strings.Cut(s, ":")
	if !ok {
		return PackageID{}, fmt.Errorf("package %q: expected namespace:name", raw)
	}
	if !validSegment(ns) || !validSegment(name) {
		return PackageID{}, fmt.Errorf("package %q: namespace and name must be non-empty kebab-case", raw)
	}
	id.Namespace, id.Name = ns, name
	return id, nil
}

func MustParsePackageID(raw string) PackageID {
	id, err := ParsePackageID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func (p PackageID) String() string {
	if p.Version == "" {
		return p.Namespace + ":" + p.Name
	}
	return p.Namespace + ":" + p.Name + "@" + p.Version
}

// Unversioned returns "namespace:name".
func (p PackageID) Unversioned() string { return p.Namespace + ":" + p.Name }

// DirName is the directory name used for the package under deps/. It keeps the
// full identity so two versions of one package never share a directory. The
// separators cannot occur inside a segment, so distinct packages never share
// a name either.
func (p PackageID) DirName() string {
	if p.Version == "" {
		return p.Namespace + "." + p.Name
	}
	return p.Namespace + "." + p.Name + "@" + p.Version
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// RemoteRef is a symbolic reference to a component published elsewhere.
// Version may be an exact version or a constraint such as "^1.2".
type RemoteRef struct {
	Source  string
	Name    string
	Version string
}

// ParseRemoteRef parses "[source/]name@version". The source is everything
// before the last slash, so "ghcr.io/org/auth@1.0.0" has source "ghcr.io/org".
func ParseRemoteRef(raw string) (RemoteRef, error) {
	s := strings.TrimSpace(raw)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return RemoteRef{}, fmt.Errorf("remote reference %q: expected [source/]name@version", raw)
	}
	ref := RemoteRef{Version: s[at+1:]}
	if _, err := semver.ParseConstraint(ref.Version); err != nil {
		return RemoteRef{}, fmt.Errorf("remote reference %q: %w", raw, err)
	}
	head := s[:at]
	if slash := strings.LastIndex(head, "/"); slash >= 0 {
		ref.Source, ref.Name = head[:slash], head[slash+1:]
	} else {
		ref.Name = head
	}
	if ref.Name == "" || strings.ContainsAny(ref.Name, " \t") {
		return RemoteRef{}, fmt.Errorf("remote reference %q: invalid name", raw)
	}
	return ref, nil
}

func MustParseRemoteRef(raw string) RemoteRef {
	r, err := ParseRemoteRef(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// WithDefaultSource fills in Source when the reference did not name one.
func (r RemoteRef) WithDefaultSource(source string) RemoteRef {
	if r.Source == "" {
		r.Source = source
	}
	return r
}

func (r RemoteRef) String() string {
	if r.Source == "" {
		return r.Name + "@" + r.Version
	}
	return r.Source + "/" + r.Name + "@" + r.Version
}

// Key is the memoization key: the exact (source, name, version) triple.
func (r RemoteRef) Key() string { return r.String() }

// Package returns the package name the composer uses for this reference. A
// name that already carries a namespace is kept, otherwise the source's last
// path segment (or "remote") becomes the namespace.
func (r RemoteRef) Package() string {
	if strings.Contains(r.Name, ":") {
		return r.Name
	}
	ns := "remote"
	if r.Source != "" {
		seg := r.Source[strings.LastIndex(r.Source, "/")+1:]
		if validSegment(seg) {
			ns = seg
		}
	}
	return ns + ":" + r.Name
}
