// Package remote resolves symbolic remote component references to local
// artifacts. Resolutions are memoized for the lifetime of a Resolver, which
// is one build session.
package remote

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/pulseengine/component-resolver/internal/digest"
	"github.com/pulseengine/component-resolver/internal/metrics"
	"github.com/pulseengine/component-resolver/internal/pkgref"
)

// Resolved is a remote reference bound to a local artifact.
type Resolved struct {
	Ref     pkgref.RemoteRef
	Version string
	Path    string
	Digest  string
}

type outcome struct {
	res Resolved
	err error
}

// Resolver resolves remote references through named sources.
//
// Concurrent calls for the same (source, name, version) share one fetch and
// the outcome, error included, is reused for every later call. Calls for
// other references never wait on it.
type Resolver struct {
	sources       map[string]Source
	defaultSource string
	cacheDir      string
	digests       *digest.Cache
	backoff       wait.Backoff
	metrics       *metrics.Collectors

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]outcome
}

type Option func(*Resolver)

// WithSource registers src under name, the source segment of references.
func WithSource(name string, src Source) Option {
	return func(r *Resolver) { r.sources[name] = src }
}

// WithDefaultSource names the source used by references without one.
func WithDefaultSource(name string) Option {
	return func(r *Resolver) { r.defaultSource = name }
}

// WithBackoff sets the retry schedule for transient fetch failures.
func WithBackoff(b wait.Backoff) Option {
	return func(r *Resolver) { r.backoff = b }
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(r *Resolver) { r.metrics = m }
}

func WithDigests(c *digest.Cache) Option {
	return func(r *Resolver) { r.digests = c }
}

// NewResolver returns a Resolver downloading into cacheDir.
func NewResolver(cacheDir string, opts ...Option) *Resolver {
	r := &Resolver{
		sources:  make(map[string]Source),
		cacheDir: cacheDir,
		backoff:  retry.DefaultBackoff,
		memo:     make(map[string]outcome),
	}
	for _, o := range opts {
		o(r)
	}
	if r.digests == nil {
		r.digests = digest.NewCache(512)
	}
	return r
}

// Sources returns the registered source names, sorted.
func (r *Resolver) Sources() []string {
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) cached(key string) (outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.memo[key]
	return o, ok
}

// Resolve returns the local artifact for ref.
//
// The shared fetch runs detached from ctx so that one caller giving up does
// not fail the others; ctx only bounds how long this caller waits. Outcomes
// caused by cancellation are not memoized.
func (r *Resolver) Resolve(ctx context.Context, ref pkgref.RemoteRef) (Resolved, error) {
	ref = ref.WithDefaultSource(r.defaultSource)
	key := ref.Key()

	if o, ok := r.cached(key); ok {
		if r.metrics != nil {
			r.metrics.RemoteCacheHits.Inc()
		}
		return o.res, o.err
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		if o, ok := r.cached(key); ok {
			return o.res, o.err
		}
		res, err := r.fetch(fetchCtx, ref)
		if !isContextError(err) {
			r.mu.Lock()
			r.memo[key] = outcome{res: res, err: err}
			r.mu.Unlock()
		}
		return res, err
	})

	select {
	case <-ctx.Done():
		return Resolved{Ref: ref}, &RemoteFetchError{Ref: ref.String(), Source: ref.Source, Err: ctx.Err()}
	case out := <-ch:
		if out.Shared && r.metrics != nil {
			r.metrics.RemoteCacheHits.Inc()
		}
		return out.Val.(Resolved), out.Err
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Resolver) fetch(ctx context.Context, ref pkgref.RemoteRef) (Resolved, error) {
	logger := log.FromContext(ctx).WithValues("ref", ref.String())
	fail := func(err error) (Resolved, error) {
		if r.metrics != nil {
			r.metrics.RemoteFetches.WithLabelValues(ref.Source, "error").Inc()
		}
		return Resolved{Ref: ref}, &RemoteFetchError{Ref: ref.String(), Source: ref.Source, Err: err}
	}

	src, ok := r.sources[ref.Source]
	if !ok {
		return fail(fmt.Errorf("unknown source; configured sources: %s", strings.Join(r.Sources(), ", ")))
	}

	var fetched Fetched
	attempts := 0
	err := retry.OnError(r.backoff, func(err error) bool {
		return !IsNotFound(err) && ctx.Err() == nil
	}, func() error {
		attempts++
		var err error
		fetched, err = src.Fetch(ctx, ref, filepath.Join(r.cacheDir, sanitize(ref.Source)))
		if err != nil && !IsNotFound(err) {
			logger.V(1).Info("fetch attempt failed", "attempt", attempts, "error", err.Error())
		}
		return err
	})
	if err != nil {
		return fail(err)
	}

	d, err := r.digests.File(fetched.Path)
	if err != nil {
		return fail(err)
	}
	if r.metrics != nil {
		r.metrics.RemoteFetches.WithLabelValues(ref.Source, "ok").Inc()
	}
	logger.Info("resolved remote component", "version", fetched.Version, "path", fetched.Path, "attempts", attempts)
	return Resolved{Ref: ref, Version: fetched.Version, Path: fetched.Path, Digest: d}, nil
}

// sanitize turns a source name into a single path segment.
func sanitize(source string) string {
	if source == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", ":", "_").Replace(source)
}

// IsRemoteFetchError reports whether err is or wraps a RemoteFetchError.
func IsRemoteFetchError(err error) bool {
	var rfe *RemoteFetchError
	return errors.As(err, &rfe)
}
