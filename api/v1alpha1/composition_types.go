package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Composition declares a system assembled from component instances.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Namespaced,shortName=comp
// +kubebuilder:printcolumn:name="Package",type=string,JSONPath=`.spec.package`
// +kubebuilder:printcolumn:name="Profile",type=string,JSONPath=`.spec.defaultProfile`
type Composition struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec CompositionSpec `json:"spec"`
}

type CompositionSpec struct {
	// Package names the composed artifact; defaults to "local:<metadata.name>".
	Package string `json:"package,omitempty"`
	// DefaultProfile applies to local instances without a profile override.
	DefaultProfile string `json:"defaultProfile,omitempty"`
	// ProfilePolicy overrides the session's policy for this composition.
	ProfilePolicy ProfilePolicy `json:"profilePolicy,omitempty"`
	// ImportPolicy overrides the session's policy for this composition.
	ImportPolicy ImportPolicy `json:"importPolicy,omitempty"`

	Instances   []InstanceSpec   `json:"instances"`
	Connections []ConnectionSpec `json:"connections,omitempty"`
	// Plugs is ordered: the first plug exporting a matching interface wins.
	Plugs   []string     `json:"plugs,omitempty"`
	Sockets []string     `json:"sockets,omitempty"`
	Exports []ExportSpec `json:"exports,omitempty"`
}

// InstanceSpec binds an instance name to exactly one of a locally built
// component or a remote reference.
type InstanceSpec struct {
	Name      string `json:"name"`
	Component string `json:"component,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Remote    string `json:"remote,omitempty"`
	// Package is the package name the composer sees; defaults to "local:<name>".
	Package string `json:"package,omitempty"`
	// HostImports marks the instance as relying on host-provided imports.
	HostImports bool         `json:"hostImports,omitempty"`
	Surface     *SurfaceSpec `json:"surface,omitempty"`
}

type ConnectionSpec struct {
	From   string `json:"from"`
	Export string `json:"export"`
	To     string `json:"to"`
	Import string `json:"import"`
}

// ExportSpec re-exports an instance interface from the composed system. An
// empty Interface exports everything the instance exports.
type ExportSpec struct {
	Instance  string `json:"instance"`
	Interface string `json:"interface,omitempty"`
}

// +kubebuilder:object:root=true
type CompositionList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Composition `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Composition{}, &CompositionList{})
}
