package registry

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the registry service.
type Client struct {
	conn grpc.ClientConnInterface
}

// Dial connects to addr without transport security; the registry runs next to
// the build.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Component is a fetched artifact.
type Component struct {
	Version string
	Digest  string
	Content []byte
}

func (c *Client) Fetch(ctx context.Context, name, version string) (Component, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"name": name, "version": version})
	if err != nil {
		return Component{}, err
	}
	var header metadata.MD
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, FetchMethod, req, out, grpc.Header(&header)); err != nil {
		return Component{}, err
	}
	comp := Component{Content: out.GetValue()}
	if v := header.Get(HeaderVersion); len(v) > 0 {
		comp.Version = v[0]
	}
	if d := header.Get(HeaderDigest); len(d) > 0 {
		comp.Digest = d[0]
	}
	if comp.Version == "" {
		return Component{}, fmt.Errorf("registry response for %s@%s carries no version", name, version)
	}
	return comp, nil
}
