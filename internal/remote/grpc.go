package remote

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pulseengine/component-resolver/internal/digest"
	"github.com/pulseengine/component-resolver/internal/pkgref"
	"github.com/pulseengine/component-resolver/internal/registry"
)

// GRPCSource fetches components from a registry server.
type GRPCSource struct {
	Client *registry.Client
}

func (g *GRPCSource) Fetch(ctx context.Context, ref pkgref.RemoteRef, cacheDir string) (Fetched, error) {
	comp, err := g.Client.Fetch(ctx, ref.Name, ref.Version)
	if status.Code(err) == codes.NotFound {
		return Fetched{}, fmt.Errorf("%w: %s", ErrNotFound, status.Convert(err).Message())
	}
	if err != nil {
		return Fetched{}, err
	}
	if comp.Digest != "" && comp.Digest != digest.Bytes(comp.Content) {
		return Fetched{}, fmt.Errorf("registry content for %s does not match digest %s", ref, comp.Digest)
	}
	dest := cachePath(cacheDir, ref, comp.Version)
	if err := writeAtomic(dest, comp.Content); err != nil {
		return Fetched{}, err
	}
	return Fetched{Path: dest, Version: comp.Version}, nil
}
