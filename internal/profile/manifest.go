package profile

import (
	"fmt"
	"os"
	"path/filepath"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	resolverv1alpha1 "github.com/pulseengine/component-resolver/api/v1alpha1"
)

// Load registers every profile of a ComponentProfiles document, or none of
// them when any conflicts. The declared default must be one of the listed
// profiles.
func (t *Tracker) Load(cp *resolverv1alpha1.ComponentProfiles) error {
	spec := cp.Spec
	if len(spec.Profiles) == 0 {
		return fmt.Errorf("profile manifest for %q lists no profiles", spec.Component)
	}
	declared := false
	for _, p := range spec.Profiles {
		if p.Name == spec.DefaultProfile {
			declared = true
		}
	}
	if spec.DefaultProfile != "" && !declared {
		return fmt.Errorf("profile manifest for %q: default profile %q is not listed", spec.Component, spec.DefaultProfile)
	}
	arts := make([]Artifact, 0, len(spec.Profiles))
	for _, p := range spec.Profiles {
		arts = append(arts, Artifact{
			Component: spec.Component,
			Profile:   p.Name,
			Path:      p.Artifact,
			Tree:      p.Tree,
			Surface:   p.Surface.DeepCopy(),
		})
	}
	return t.registerAll(arts, spec.DefaultProfile)
}

// Manifest renders the profiles of componentName as a ComponentProfiles object.
func (t *Tracker) Manifest(componentName string) (*resolverv1alpha1.ComponentProfiles, error) {
	arts, def, err := t.Profiles(componentName)
	if err != nil {
		return nil, err
	}
	cp := &resolverv1alpha1.ComponentProfiles{
		TypeMeta: metav1.TypeMeta{
			APIVersion: resolverv1alpha1.GroupVersion.String(),
			Kind:       "ComponentProfiles",
		},
		ObjectMeta: metav1.ObjectMeta{Name: componentName},
		Spec: resolverv1alpha1.ComponentProfilesSpec{
			Component:      componentName,
			DefaultProfile: def,
		},
	}
	for _, a := range arts {
		cp.Spec.Profiles = append(cp.Spec.Profiles, resolverv1alpha1.ProfileArtifact{
			Name:     a.Profile,
			Artifact: a.Path,
			Tree:     a.Tree,
			Surface:  a.Surface.DeepCopy(),
		})
	}
	return cp, nil
}

// WriteManifest writes the profile manifest of componentName to path as YAML.
func (t *Tracker) WriteManifest(componentName, path string) error {
	cp, err := t.Manifest(componentName)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode profile manifest for %q: %w", componentName, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
