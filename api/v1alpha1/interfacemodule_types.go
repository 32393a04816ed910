package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// InterfaceModule declares a package of interface definitions and the packages
// it depends on directly.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Namespaced,shortName=im
// +kubebuilder:printcolumn:name="Package",type=string,JSONPath=`.spec.package`
// +kubebuilder:printcolumn:name="World",type=string,JSONPath=`.spec.world`
type InterfaceModule struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec InterfaceModuleSpec `json:"spec"`
}

type InterfaceModuleSpec struct {
	// Package is the identity, e.g. "wasi:io@0.2.0".
	Package string `json:"package"`
	// World is the optional entry-point world used when generating bindings.
	World string `json:"world,omitempty"`
	// Srcs are the module's own files. Relative paths are resolved against
	// the directory of the manifest that declared them.
	Srcs []string `json:"srcs"`
	// Deps lists the package identities this module references directly.
	Deps []string `json:"deps,omitempty"`
	// Generator configures binding generation for this module.
	Generator *GeneratorSpec `json:"generator,omitempty"`
}

type GeneratorSpec struct {
	Language string `json:"language,omitempty"`
	// With maps a dependency package to an existing binding strategy
	// (for example a crate path). Packages missing here are generated.
	With map[string]string `json:"with,omitempty"`
}

// +kubebuilder:object:root=true
type InterfaceModuleList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []InterfaceModule `json:"items"`
}

func init() {
	SchemeBuilder.Register(&InterfaceModule{}, &InterfaceModuleList{})
}
