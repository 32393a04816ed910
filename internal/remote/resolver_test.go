package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/pulseengine/component-resolver/internal/metrics"
	"github.com/pulseengine/component-resolver/internal/pkgref"
	"github.com/pulseengine/component-resolver/internal/registry"
)

var fastBackoff = wait.Backoff{Steps: 3, Duration: time.Millisecond, Factor: 1}

// countingSource writes one file per call and counts calls per reference.
type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ref pkgref.RemoteRef, n int) error
	gate  map[string]chan struct{}
}

func newCountingSource() *countingSource {
	return &countingSource{calls: make(map[string]int), gate: make(map[string]chan struct{})}
}

func (s *countingSource) Fetch(ctx context.Context, ref pkgref.RemoteRef, cacheDir string) (Fetched, error) {
	s.mu.Lock()
	s.calls[ref.Key()]++
	n := s.calls[ref.Key()]
	gate := s.gate[ref.Key()]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Fetched{}, ctx.Err()
		}
	}
	if s.fn != nil {
		if err := s.fn(ref, n); err != nil {
			return Fetched{}, err
		}
	}
	path := cachePath(cacheDir, ref, ref.Version)
	if err := writeAtomic(path, []byte(ref.Key())); err != nil {
		return Fetched{}, err
	}
	return Fetched{Path: path, Version: ref.Version}, nil
}

func (s *countingSource) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func TestResolve_DuplicateReferenceFetchesOnce(t *testing.T) {
	src := newCountingSource()
	m := metrics.New(prometheus.NewRegistry())
	r := NewResolver(t.TempDir(), WithSource("registry", src), WithMetrics(m))

	var wg sync.WaitGroup
	results := make([]Resolved, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), pkgref.MustParseRemoteRef("registry/auth@1.2.0"))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, 1, src.count("registry/auth@1.2.0"))
	require.Equal(t, results[0].Path, results[1].Path)
	require.Equal(t, results[0].Digest, results[1].Digest)
	require.Equal(t, 1.0, testutil.ToFloat64(m.RemoteFetches.WithLabelValues("registry", "ok")))
}

func TestResolve_ErrorIsMemoized(t *testing.T) {
	src := newCountingSource()
	src.fn = func(pkgref.RemoteRef, int) error { return fmt.Errorf("%w: gone", ErrNotFound) }
	r := NewResolver(t.TempDir(), WithSource("registry", src), WithBackoff(fastBackoff))

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), pkgref.MustParseRemoteRef("registry/auth@1.2.0"))
		var rfe *RemoteFetchError
		require.ErrorAs(t, err, &rfe)
		require.Equal(t, "registry/auth@1.2.0", rfe.Ref)
		require.True(t, IsNotFound(err))
	}
	require.Equal(t, 1, src.count("registry/auth@1.2.0"))
}

func TestResolve_RetriesTransientFailures(t *testing.T) {
	src := newCountingSource()
	src.fn = func(_ pkgref.RemoteRef, n int) error {
		if n < 3 {
			return errors.New("connection reset")
		}
		return nil
	}
	r := NewResolver(t.TempDir(), WithSource("registry", src), WithBackoff(fastBackoff))

	res, err := r.Resolve(context.Background(), pkgref.MustParseRemoteRef("registry/auth@1.2.0"))
	require.NoError(t, err)
	require.Equal(t, 3, src.count("registry/auth@1.2.0"))
	require.FileExists(t, res.Path)
}

func TestResolve_UnrelatedReferenceIsNotBlocked(t *testing.T) {
	src := newCountingSource()
	release := make(chan struct{})
	src.gate["registry/slow@1.0.0"] = release
	r := NewResolver(t.TempDir(), WithSource("registry", src))

	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), pkgref.MustParseRemoteRef("registry/slow@1.0.0"))
		done <- err
	}()

	_, err := r.Resolve(context.Background(), pkgref.MustParseRemoteRef("registry/fast@1.0.0"))
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestResolve_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	src := newCountingSource()
	release := make(chan struct{})
	src.gate["registry/auth@1.2.0"] = release
	r := NewResolver(t.TempDir(), WithSource("registry", src))
	ref := pkgref.MustParseRemoteRef("registry/auth@1.2.0")

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, ref)
		first <- err
	}()
	require.Eventually(t, func() bool { return src.count(ref.Key()) == 1 }, time.Second, time.Millisecond)

	cancel()
	err := <-first
	require.True(t, IsRemoteFetchError(err))
	require.ErrorIs(t, err, context.Canceled)

	second := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), ref)
		second <- err
	}()
	close(release)
	require.NoError(t, <-second)
	require.Equal(t, 1, src.count(ref.Key()))
}

func TestResolve_ContextErrorIsNotMemoized(t *testing.T) {
	src := newCountingSource()
	src.fn = func(_ pkgref.RemoteRef, n int) error {
		if n <= fastBackoff.Steps {
			return context.DeadlineExceeded
		}
		return nil
	}
	r := NewResolver(t.TempDir(), WithSource("registry", src), WithBackoff(fastBackoff))
	ref := pkgref.MustParseRemoteRef("registry/auth@1.2.0")

	_, err := r.Resolve(context.Background(), ref)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	res, err := r.Resolve(context.Background(), ref)
	require.NoError(t, err)
	require.FileExists(t, res.Path)
}

func TestResolve_UnknownSource(t *testing.T) {
	r := NewResolver(t.TempDir(), WithSource("registry", newCountingSource()))
	_, err := r.Resolve(context.Background(), pkgref.MustParseRemoteRef("elsewhere/auth@1.0.0"))
	require.True(t, IsRemoteFetchError(err))
	require.Contains(t, err.Error(), "registry")
}

func TestResolve_DefaultSource(t *testing.T) {
	src := newCountingSource()
	r := NewResolver(t.TempDir(), WithSource("mirror", src), WithDefaultSource("mirror"))
	res, err := r.Resolve(context.Background(), pkgref.MustParseRemoteRef("auth@1.0.0"))
	require.NoError(t, err)
	require.Equal(t, "mirror", res.Ref.Source)
	require.Equal(t, 1, src.count("mirror/auth@1.0.0"))
}

func mirror(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
	return root
}

func TestDirSource_PicksHighestSatisfyingVersion(t *testing.T) {
	root := mirror(t, "auth/1.2.0.wasm", "auth/1.4.1.wasm", "auth/2.0.0.wasm", "auth/notes.txt")
	src := NewDirSource(root)

	f, err := src.Fetch(context.Background(), pkgref.MustParseRemoteRef("auth@^1.2"), "")
	require.NoError(t, err)
	require.Equal(t, "1.4.1", f.Version)
	require.Equal(t, filepath.Join(root, "auth", "1.4.1.wasm"), f.Path)

	_, err = src.Fetch(context.Background(), pkgref.MustParseRemoteRef("auth@3.0.0"), "")
	require.True(t, IsNotFound(err))
	_, err = src.Fetch(context.Background(), pkgref.MustParseRemoteRef("missing@1.0.0"), "")
	require.True(t, IsNotFound(err))
}

func TestGRPCSource_ThroughRegistryServer(t *testing.T) {
	root := mirror(t, "auth/1.2.0.wasm")
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	registry.RegisterRegistryServer(s, registry.NewServer(NewDirSource(root)))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	r := NewResolver(t.TempDir(), WithSource("registry", &GRPCSource{Client: registry.NewClient(conn)}), WithBackoff(fastBackoff))
	res, err := r.Resolve(context.Background(), pkgref.MustParseRemoteRef("registry/auth@~1.2"))
	require.NoError(t, err)
	require.Equal(t, "1.2.0", res.Version)
	content, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	require.Equal(t, "auth/1.2.0.wasm", string(content))

	_, err = r.Resolve(context.Background(), pkgref.MustParseRemoteRef("registry/auth@9.0.0"))
	require.True(t, IsNotFound(err))
}

func TestVersionFromKey(t *testing.T) {
	v, ok := versionFromKey("components/auth/", "components/auth/1.2.0.wasm")
	require.True(t, ok)
	require.Equal(t, "1.2.0", v)
	_, ok = versionFromKey("components/auth/", "components/auth/old/1.0.0.wasm")
	require.False(t, ok)
	_, ok = versionFromKey("components/auth/", "components/other/1.0.0.wasm")
	require.False(t, ok)
}
