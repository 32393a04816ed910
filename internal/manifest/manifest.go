// Package manifest loads InterfaceModule, ComponentProfiles and Composition
// documents from multi-document YAML files.
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"

	resolverv1alpha1 "github.com/pulseengine/component-resolver/api/v1alpha1"
)

var (
	scheme = runtime.NewScheme()
	codecs = serializer.NewCodecFactory(scheme, serializer.EnableStrict)
)

func init() {
	utilruntime.Must(resolverv1alpha1.AddToScheme(scheme))
}

// Scheme returns the scheme holding every manifest kind.
func Scheme() *runtime.Scheme { return scheme }

// Set is everything loaded from one or more manifest files. Relative paths
// inside the documents are already resolved against their file's directory.
type Set struct {
	InterfaceModules  []resolverv1alpha1.InterfaceModule
	ComponentProfiles []resolverv1alpha1.ComponentProfiles
	Compositions      []resolverv1alpha1.Composition
}

// Composition returns the composition named name.
func (s *Set) Composition(name string) (*resolverv1alpha1.Composition, bool) {
	for i := range s.Compositions {
		if s.Compositions[i].Name == name {
			return &s.Compositions[i], true
		}
	}
	return nil, false
}

// LoadFiles decodes every document of every file. Errors from different
// files are aggregated.
func LoadFiles(paths ...string) (*Set, error) {
	set := &Set{}
	var errs []error
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		abs, _ := filepath.Abs(p)
		if err := set.Decode(f, filepath.Dir(abs)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
		f.Close()
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, err
	}
	return set, nil
}

// Decode reads a multi-document YAML stream into s. dir anchors relative paths.
func (s *Set) Decode(r io.Reader, dir string) error {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(r))
	for i := 0; ; i++ {
		doc, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}
		obj, gvk, err := codecs.UniversalDeserializer().Decode(doc, nil, nil)
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		if err := s.add(obj, dir); err != nil {
			return fmt.Errorf("document %d (%s): %w", i, gvk.Kind, err)
		}
	}
}

func (s *Set) add(obj runtime.Object, dir string) error {
	switch o := obj.(type) {
	case *resolverv1alpha1.InterfaceModule:
		for i, src := range o.Spec.Srcs {
			o.Spec.Srcs[i] = anchor(dir, src)
		}
		s.InterfaceModules = append(s.InterfaceModules, *o)
	case *resolverv1alpha1.InterfaceModuleList:
		for i := range o.Items {
			if err := s.add(&o.Items[i], dir); err != nil {
				return err
			}
		}
	case *resolverv1alpha1.ComponentProfiles:
		for i := range o.Spec.Profiles {
			p := &o.Spec.Profiles[i]
			p.Artifact = anchor(dir, p.Artifact)
			if p.Tree != "" {
				p.Tree = anchor(dir, p.Tree)
			}
		}
		s.ComponentProfiles = append(s.ComponentProfiles, *o)
	case *resolverv1alpha1.ComponentProfilesList:
		for i := range o.Items {
			if err := s.add(&o.Items[i], dir); err != nil {
				return err
			}
		}
	case *resolverv1alpha1.Composition:
		if o.Spec.Package == "" {
			o.Spec.Package = "local:" + o.Name
		}
		s.Compositions = append(s.Compositions, *o)
	case *resolverv1alpha1.CompositionList:
		for i := range o.Items {
			if err := s.add(&o.Items[i], dir); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported object %T", obj)
	}
	return nil
}

func anchor(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
