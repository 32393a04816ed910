package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *SurfaceSpec) DeepCopyInto(out *SurfaceSpec) {
	*out = *in
	if in.Imports != nil {
		out.Imports = make([]InterfaceSpec, len(in.Imports))
		copy(out.Imports, in.Imports)
	}
	if in.Exports != nil {
		out.Exports = make([]InterfaceSpec, len(in.Exports))
		copy(out.Exports, in.Exports)
	}
}

// DeepCopy copies the receiver, creating a new SurfaceSpec.
func (in *SurfaceSpec) DeepCopy() *SurfaceSpec {
	if in == nil {
		return nil
	}
	out := new(SurfaceSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *InterfaceModule) DeepCopyInto(out *InterfaceModule) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
}

// DeepCopy copies the receiver, creating a new InterfaceModule.
func (in *InterfaceModule) DeepCopy() *InterfaceModule {
	if in == nil {
		return nil
	}
	out := new(InterfaceModule)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *InterfaceModule) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *InterfaceModuleSpec) DeepCopyInto(out *InterfaceModuleSpec) {
	*out = *in
	if in.Srcs != nil {
		out.Srcs = make([]string, len(in.Srcs))
		copy(out.Srcs, in.Srcs)
	}
	if in.Deps != nil {
		out.Deps = make([]string, len(in.Deps))
		copy(out.Deps, in.Deps)
	}
	if in.Generator != nil {
		in, out := &in.Generator, &out.Generator
		*out = new(GeneratorSpec)
		(*in).DeepCopyInto(*out)
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *GeneratorSpec) DeepCopyInto(out *GeneratorSpec) {
	*out = *in
	if in.With != nil {
		out.With = make(map[string]string, len(in.With))
		for k, v := range in.With {
			out.With[k] = v
		}
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *InterfaceModuleList) DeepCopyInto(out *InterfaceModuleList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]InterfaceModule, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new InterfaceModuleList.
func (in *InterfaceModuleList) DeepCopy() *InterfaceModuleList {
	if in == nil {
		return nil
	}
	out := new(InterfaceModuleList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *InterfaceModuleList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *ComponentProfiles) DeepCopyInto(out *ComponentProfiles) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
}

// DeepCopy copies the receiver, creating a new ComponentProfiles.
func (in *ComponentProfiles) DeepCopy() *ComponentProfiles {
	if in == nil {
		return nil
	}
	out := new(ComponentProfiles)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *ComponentProfiles) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *ComponentProfilesSpec) DeepCopyInto(out *ComponentProfilesSpec) {
	*out = *in
	if in.Profiles != nil {
		out.Profiles = make([]ProfileArtifact, len(in.Profiles))
		for i := range in.Profiles {
			in.Profiles[i].DeepCopyInto(&out.Profiles[i])
		}
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *ProfileArtifact) DeepCopyInto(out *ProfileArtifact) {
	*out = *in
	out.Surface = in.Surface.DeepCopy()
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *ComponentProfilesList) DeepCopyInto(out *ComponentProfilesList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]ComponentProfiles, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new ComponentProfilesList.
func (in *ComponentProfilesList) DeepCopy() *ComponentProfilesList {
	if in == nil {
		return nil
	}
	out := new(ComponentProfilesList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *ComponentProfilesList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *Composition) DeepCopyInto(out *Composition) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
}

// DeepCopy copies the receiver, creating a new Composition.
func (in *Composition) DeepCopy() *Composition {
	if in == nil {
		return nil
	}
	out := new(Composition)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *Composition) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *CompositionSpec) DeepCopyInto(out *CompositionSpec) {
	*out = *in
	if in.Instances != nil {
		out.Instances = make([]InstanceSpec, len(in.Instances))
		for i := range in.Instances {
			in.Instances[i].DeepCopyInto(&out.Instances[i])
		}
	}
	if in.Connections != nil {
		out.Connections = make([]ConnectionSpec, len(in.Connections))
		copy(out.Connections, in.Connections)
	}
	if in.Plugs != nil {
		out.Plugs = make([]string, len(in.Plugs))
		copy(out.Plugs, in.Plugs)
	}
	if in.Sockets != nil {
		out.Sockets = make([]string, len(in.Sockets))
		copy(out.Sockets, in.Sockets)
	}
	if in.Exports != nil {
		out.Exports = make([]ExportSpec, len(in.Exports))
		copy(out.Exports, in.Exports)
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *InstanceSpec) DeepCopyInto(out *InstanceSpec) {
	*out = *in
	out.Surface = in.Surface.DeepCopy()
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *CompositionList) DeepCopyInto(out *CompositionList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]Composition, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new CompositionList.
func (in *CompositionList) DeepCopy() *CompositionList {
	if in == nil {
		return nil
	}
	out := new(CompositionList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *CompositionList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
