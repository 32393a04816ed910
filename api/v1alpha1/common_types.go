package v1alpha1

// ProfilePolicy decides what happens when a requested build profile is missing.
type ProfilePolicy string

// ImportPolicy decides what happens to imports no connection or plug satisfies.
type ImportPolicy string

// LinkMode selects how files are materialized into a resolved tree.
type LinkMode string

const (
	// ProfilePolicyLenient substitutes the component's default profile and warns.
	ProfilePolicyLenient ProfilePolicy = "lenient"
	// ProfilePolicyStrict fails with ProfileNotAvailableError.
	ProfilePolicyStrict ProfilePolicy = "strict"

	// ImportPolicyPassthrough leaves unmatched imports for the host runtime.
	ImportPolicyPassthrough ImportPolicy = "passthrough"
	// ImportPolicyStrict fails on any unmatched import of an instance that does
	// not declare hostImports.
	ImportPolicyStrict ImportPolicy = "strict"

	LinkModeLink LinkMode = "link"
	LinkModeCopy LinkMode = "copy"
)

// InterfaceSpec names one interface on a component's import or export surface.
// Type is an optional structural fingerprint; when both sides carry one they
// must be equal for plug matching to bind them.
type InterfaceSpec struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// SurfaceSpec is a declared interface surface.
type SurfaceSpec struct {
	Imports []InterfaceSpec `json:"imports,omitempty"`
	Exports []InterfaceSpec `json:"exports,omitempty"`
}

// IsZero reports whether nothing was declared.
func (s *SurfaceSpec) IsZero() bool {
	return s == nil || (len(s.Imports) == 0 && len(s.Exports) == 0)
}
