package registry

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/pulseengine/component-resolver/internal/digest"
)

// ErrNotFound is returned by a Store that has no matching artifact.
var ErrNotFound = errors.New("component not found")

// Store finds the artifact for a name and version constraint.
type Store interface {
	Lookup(ctx context.Context, name, version string) (path, resolved string, err error)
}

// Server serves a Store over the registry service.
type Server struct {
	Store   Store
	Digests *digest.Cache
}

func NewServer(store Store) *Server {
	return &Server{Store: store, Digests: digest.NewCache(256)}
}

func (s *Server) Fetch(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is nil")
	}
	name := req.GetFields()["name"].GetStringValue()
	version := req.GetFields()["version"].GetStringValue()
	if name == "" || version == "" {
		return nil, status.Error(codes.InvalidArgument, "name and version are required")
	}
	logger := log.FromContext(ctx).WithValues("name", name, "version", version)

	path, resolved, err := s.Store.Lookup(ctx, name, version)
	if errors.Is(err, ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "%s@%s: %v", name, version, err)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%s@%s: %v", name, version, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "read %s: %v", path, err)
	}
	d, err := s.Digests.File(path)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "digest %s: %v", path, err)
	}
	if err := grpc.SetHeader(ctx, metadata.Pairs(HeaderVersion, resolved, HeaderDigest, d)); err != nil {
		return nil, err
	}
	logger.Info("served component", "resolved", resolved, "bytes", len(content))
	return wrapperspb.Bytes(content), nil
}

// LoggingInterceptor places logger in every request context and logs the
// outcome of each call.
func LoggingInterceptor(logger logr.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		ctx = log.IntoContext(ctx, logger.WithValues("method", info.FullMethod))
		resp, err := handler(ctx, req)
		logger.V(1).Info("handled call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start).String())
		return resp, err
	}
}
