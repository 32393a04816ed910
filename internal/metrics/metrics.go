// Package metrics holds the Prometheus collectors of one resolution session.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Collectors are registered once per session registry.
type Collectors struct {
	registry ctrlmetrics.RegistererGatherer

	TreesAssembled    prometheus.Counter
	TreeEntries       prometheus.Histogram
	ModuleCycles      prometheus.Counter
	ProfileSelections *prometheus.CounterVec
	ProfileFallbacks  *prometheus.CounterVec
	RemoteFetches     *prometheus.CounterVec
	RemoteCacheHits   prometheus.Counter
	PlugBindings      prometheus.Counter
	UnresolvedImports prometheus.Gauge
	Compositions      *prometheus.CounterVec
	ToolDuration      *prometheus.HistogramVec
}

// New registers a fresh set of collectors with reg. The binary passes the
// controller-runtime registry; tests pass prometheus.NewRegistry().
func New(reg ctrlmetrics.RegistererGatherer) *Collectors {
	c := &Collectors{
		registry: reg,
		TreesAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolver_trees_assembled_total",
			Help: "Number of interface trees published.",
		}),
		TreeEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolver_tree_entries",
			Help:    "Links or copies per assembled interface tree.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ModuleCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolver_module_cycles_total",
			Help: "Module graphs rejected because of a dependency cycle.",
		}),
		ProfileSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolver_profile_selections_total",
			Help: "Profile artifacts selected for composition instances.",
		}, []string{"component", "profile"}),
		ProfileFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolver_profile_fallbacks_total",
			Help: "Requested profiles that were missing and replaced by the default.",
		}, []string{"component"}),
		RemoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolver_remote_fetches_total",
			Help: "Remote component fetches by source and result.",
		}, []string{"source", "result"}),
		RemoteCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolver_remote_cache_hits_total",
			Help: "Remote resolutions served from the session memo.",
		}),
		PlugBindings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolver_plug_bindings_total",
			Help: "Socket imports bound to a plug export.",
		}),
		UnresolvedImports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resolver_unresolved_imports",
			Help: "Socket imports passed through to the host in the last composition.",
		}),
		Compositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolver_compositions_total",
			Help: "Composition resolutions by result.",
		}, []string{"result"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resolver_tool_duration_seconds",
			Help:    "Time spent in external tools.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	reg.MustRegister(
		c.TreesAssembled,
		c.TreeEntries,
		c.ModuleCycles,
		c.ProfileSelections,
		c.ProfileFallbacks,
		c.RemoteFetches,
		c.RemoteCacheHits,
		c.PlugBindings,
		c.UnresolvedImports,
		c.Compositions,
		c.ToolDuration,
	)
	return c
}

// WriteFile writes everything gathered by the session registry in the text
// exposition format.
func (c *Collectors) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Result is the label value for an outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveTool records the time since start against tool. A nil receiver is a
// no-op so callers without metrics need no guard.
func (c *Collectors) ObserveTool(tool string, start time.Time) {
	if c == nil {
		return
	}
	c.ToolDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}
