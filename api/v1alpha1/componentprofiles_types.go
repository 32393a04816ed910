package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ComponentProfiles is the profile manifest of one built component: every
// build variant it was compiled in and which of them is the default.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Namespaced,shortName=cprof
// +kubebuilder:printcolumn:name="Component",type=string,JSONPath=`.spec.component`
// +kubebuilder:printcolumn:name="Default",type=string,JSONPath=`.spec.defaultProfile`
type ComponentProfiles struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ComponentProfilesSpec `json:"spec"`
}

type ComponentProfilesSpec struct {
	Component      string            `json:"component"`
	DefaultProfile string            `json:"defaultProfile"`
	Profiles       []ProfileArtifact `json:"profiles"`
}

type ProfileArtifact struct {
	Name     string `json:"name"`
	Artifact string `json:"artifact"`
	// Tree is the root of the resolved interface tree the artifact was built from.
	Tree    string       `json:"tree,omitempty"`
	Surface *SurfaceSpec `json:"surface,omitempty"`
}

// +kubebuilder:object:root=true
type ComponentProfilesList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ComponentProfiles `json:"items"`
}

func init() {
	SchemeBuilder.Register(&ComponentProfiles{}, &ComponentProfilesList{})
}
