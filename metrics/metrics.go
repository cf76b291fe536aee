// Package metrics exposes the storage and memory core's operational
// counters as Prometheus metrics, grounded in GoogleCloudPlatform-gcsfuse's
// metrics package. The spec itself is silent on observability (§1's
// non-goals exclude working-set accounting, not instrumentation), so these
// are additive: nothing in the core's control flow depends on them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// / CacheHit counts buffer-cache reads/writes served by a resident entry.
	CacheHit = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "biscuit",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Buffer cache accesses served without a device read.",
	})

	// / CacheMiss counts buffer-cache accesses that allocated a fresh entry.
	CacheMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "biscuit",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Buffer cache accesses that required reading the sector in.",
	})

	// / CacheEviction counts FIFO-head evictions performed on admission.
	CacheEviction = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "biscuit",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Buffer cache entries evicted to admit a new sector.",
	})

	// / FrameEviction counts physical frames reclaimed by the page-fault
	// / resolver's eviction path.
	FrameEviction = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "biscuit",
		Subsystem: "frame",
		Name:      "evictions_total",
		Help:      "Physical frames reclaimed via victim selection.",
	})

	// / PageFaults counts page faults handled by the resolver, partitioned
	// / by outcome.
	PageFaults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biscuit",
		Subsystem: "vm",
		Name:      "page_faults_total",
		Help:      "Page faults handled by the resolver, by outcome.",
	}, []string{"outcome"})

	// / SwapOccupancy reports the number of swap slots currently in use.
	SwapOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "biscuit",
		Subsystem: "swap",
		Name:      "slots_in_use",
		Help:      "Swap slots currently allocated.",
	})
)

// / Registry bundles the collectors above into one Prometheus registry for
// / cmd/biscuitctl to expose.
func Registry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(CacheHit, CacheMiss, CacheEviction, FrameEviction, PageFaults, SwapOccupancy)
	return r
}
