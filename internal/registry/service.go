// Package registry is a small gRPC service serving component artifacts by
// name and version constraint. Payloads use the protobuf well-known types so
// the service needs no generated code:
//
//	Fetch(google.protobuf.Struct{name, version}) returns (google.protobuf.BytesValue)
//
// The resolved version and content digest travel in response headers.
package registry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "componentregistry.v1.Registry"
	FetchMethod = "/" + ServiceName + "/Fetch"

	// HeaderVersion carries the concrete version served.
	HeaderVersion = "x-component-version"
	// HeaderDigest carries the content digest of the served bytes.
	HeaderDigest = "x-component-digest"
)

// RegistryServer is the server API of the registry service.
type RegistryServer interface {
	Fetch(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error)
}

// RegisterRegistryServer registers srv with s.
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fetchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FetchMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegistryServer).Fetch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc for the registry service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Fetch",
			Handler:    fetchHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "componentregistry/v1/registry.proto",
}
