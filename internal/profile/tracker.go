// Package profile tracks the build variants of every compiled component and
// selects one at composition time.
package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/log"

	resolverv1alpha1 "github.com/pulseengine/component-resolver/api/v1alpha1"
)

// Artifact is one (component, profile) build output.
type Artifact struct {
	Component string
	Profile   string
	Path      string
	// Tree is the root of the interface tree the artifact was built from.
	Tree    string
	Surface *resolverv1alpha1.SurfaceSpec
}

// ProfileNotAvailableError is returned under the strict policy when the
// requested profile was never built.
type ProfileNotAvailableError struct {
	Component string
	Requested string
	Available []string
}

func (e *ProfileNotAvailableError) Error() string {
	return fmt.Sprintf("component %q has no profile %q (available: %s)", e.Component, e.Requested, strings.Join(e.Available, ", "))
}

// ComponentNotFoundError is returned when no profile was registered for a
// component at all.
type ComponentNotFoundError struct {
	Component string
}

func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component %q has no registered profiles; add its profile manifest", e.Component)
}

// ConflictError is returned when a (component, profile) pair is registered
// twice with different artifacts.
type ConflictError struct {
	Component string
	Profile   string
	Existing  string
	New       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("profile %q of component %q already registered as %s, refusing %s", e.Profile, e.Component, e.Existing, e.New)
}

type component struct {
	defaultProfile string
	profiles       map[string]Artifact
}

// Tracker maps component -> profile -> artifact. It is safe for concurrent use.
type Tracker struct {
	mu         sync.RWMutex
	components map[string]*component
}

func NewTracker() *Tracker {
	return &Tracker{components: make(map[string]*component)}
}

// Register records a. Profiles are write-once: registering the same pair again
// is a no-op when the artifact matches and a ConflictError otherwise. The
// first profile registered for a component becomes its default until
// SetDefault says otherwise.
func (t *Tracker) Register(a Artifact) error {
	return t.registerAll([]Artifact{a}, "")
}

// registerAll records arts as one unit: on any error nothing is recorded.
// A non-empty def becomes the default of the component of arts[0].
func (t *Tracker) registerAll(arts []Artifact, def string) error {
	for _, a := range arts {
		if a.Component == "" || a.Profile == "" || a.Path == "" {
			return fmt.Errorf("register profile: component, profile and artifact path are required (got %+v)", a)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	type key struct{ component, profile string }
	pending := make(map[key]Artifact, len(arts))
	for _, a := range arts {
		prev, ok := pending[key{a.Component, a.Profile}]
		if !ok {
			if c, found := t.components[a.Component]; found {
				prev, ok = c.profiles[a.Profile]
			}
		}
		if ok && prev.Path != a.Path {
			return &ConflictError{Component: a.Component, Profile: a.Profile, Existing: prev.Path, New: a.Path}
		}
		pending[key{a.Component, a.Profile}] = a
	}

	for _, a := range arts {
		c, ok := t.components[a.Component]
		if !ok {
			c = &component{defaultProfile: a.Profile, profiles: make(map[string]Artifact)}
			t.components[a.Component] = c
		}
		if _, ok := c.profiles[a.Profile]; !ok {
			c.profiles[a.Profile] = a
		}
	}
	if def != "" && len(arts) > 0 {
		t.components[arts[0].Component].defaultProfile = def
	}
	return nil
}

// SetDefault designates an already registered profile as the default.
func (t *Tracker) SetDefault(componentName, profileName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.components[componentName]
	if !ok {
		return &ComponentNotFoundError{Component: componentName}
	}
	if _, ok := c.profiles[profileName]; !ok {
		return &ProfileNotAvailableError{Component: componentName, Requested: profileName, Available: names(c)}
	}
	c.defaultProfile = profileName
	return nil
}

// Selection is the result of Get.
type Selection struct {
	Artifact
	// Requested is the profile asked for; empty means the default.
	Requested string
	// FellBack is set when Requested was missing and the default was used.
	FellBack bool
}

// Get returns the artifact for profileName, or the default when profileName
// is empty. A missing profile falls back to the default with a warning under
// the lenient policy and fails with ProfileNotAvailableError under strict.
func (t *Tracker) Get(ctx context.Context, componentName, profileName string, policy resolverv1alpha1.ProfilePolicy) (Selection, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.components[componentName]
	if !ok {
		return Selection{}, &ComponentNotFoundError{Component: componentName}
	}
	if profileName == "" {
		return Selection{Artifact: c.profiles[c.defaultProfile]}, nil
	}
	if a, ok := c.profiles[profileName]; ok {
		return Selection{Artifact: a, Requested: profileName}, nil
	}
	if policy == resolverv1alpha1.ProfilePolicyStrict {
		return Selection{}, &ProfileNotAvailableError{Component: componentName, Requested: profileName, Available: names(c)}
	}
	log.FromContext(ctx).Info("warning: requested profile not built, substituting default",
		"component", componentName, "requested", profileName, "substituted", c.defaultProfile)
	return Selection{Artifact: c.profiles[c.defaultProfile], Requested: profileName, FellBack: true}, nil
}

// Components returns registered component names, sorted.
func (t *Tracker) Components() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.components))
	for name := range t.components {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Profiles returns every artifact of componentName sorted by profile name,
// plus the default profile name.
func (t *Tracker) Profiles(componentName string) ([]Artifact, string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.components[componentName]
	if !ok {
		return nil, "", &ComponentNotFoundError{Component: componentName}
	}
	out := make([]Artifact, 0, len(c.profiles))
	for _, n := range names(c) {
		out = append(out, c.profiles[n])
	}
	return out, c.defaultProfile, nil
}

func names(c *component) []string {
	out := make([]string, 0, len(c.profiles))
	for n := range c.profiles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
