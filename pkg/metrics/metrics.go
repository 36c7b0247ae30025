// Package metrics exports framekit runtime state to Prometheus.
//
// # Overview
//
// The metrics package provides:
//   - RuntimeCollector, a prometheus.Collector that snapshots the object
//     pool and the state machine registry on every scrape
//   - Pre-defined frame metrics recorded by the host loop
//   - A Timer helper for measuring frame work
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewRuntimeCollector(pools, machines))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// Scrapes read the registries from the HTTP goroutine, so the sources
// passed to NewRuntimeCollector must serialize access with the frame loop.
// internal/host.Runtime does.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/framekit/pkg/cachepool"
	"github.com/ajitpratap0/framekit/pkg/fsm"
)

const namespace = "framekit"

// PoolSource provides pool snapshots.
type PoolSource interface {
	GetAllCollectionInfos() []cachepool.CollectionInfo
}

// MachineSource provides state machine snapshots.
type MachineSource interface {
	GetAllMachineInfos() []fsm.MachineInfo
}

// RuntimeCollector is a prometheus.Collector reporting one const metric per
// pool counter and state machine on every scrape. Either source may be nil.
type RuntimeCollector struct {
	pools    PoolSource
	machines MachineSource

	poolUnused    *prometheus.Desc
	poolUsing     *prometheus.Desc
	poolSpawns    *prometheus.Desc
	poolUnspawns  *prometheus.Desc
	poolCreated   *prometheus.Desc
	poolDiscarded *prometheus.Desc

	machinesTotal   *prometheus.Desc
	machinesRunning *prometheus.Desc
	stateSeconds    *prometheus.Desc
}

// NewRuntimeCollector creates a collector over the given sources.
//
// Example:
//
//	collector := metrics.NewRuntimeCollector(runtime, runtime)
//	prometheus.MustRegister(collector)
func NewRuntimeCollector(pools PoolSource, machines MachineSource) *RuntimeCollector {
	typeLabel := []string{"type"}
	return &RuntimeCollector{
		pools:    pools,
		machines: machines,

		poolUnused: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "unused_instances"),
			"Idle instances held by the pool", typeLabel, nil),
		poolUsing: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "using_instances"),
			"Instances currently lent out by the pool", typeLabel, nil),
		poolSpawns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "spawns_total"),
			"Total successful spawns", typeLabel, nil),
		poolUnspawns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "unspawns_total"),
			"Total successful unspawns", typeLabel, nil),
		poolCreated: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "created_total"),
			"Total instances constructed", typeLabel, nil),
		poolDiscarded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "discarded_total"),
			"Total instances dropped", typeLabel, nil),

		machinesTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "fsm", "machines"),
			"Live state machines", nil, nil),
		machinesRunning: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "fsm", "running_machines"),
			"Started state machines", nil, nil),
		stateSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "fsm", "current_state_seconds"),
			"Unscaled time spent in the current state",
			[]string{"owner_type", "name", "state"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolUnused
	ch <- c.poolUsing
	ch <- c.poolSpawns
	ch <- c.poolUnspawns
	ch <- c.poolCreated
	ch <- c.poolDiscarded
	ch <- c.machinesTotal
	ch <- c.machinesRunning
	ch <- c.stateSeconds
}

// Collect implements prometheus.Collector.
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pools != nil {
		for _, info := range c.pools.GetAllCollectionInfos() {
			ch <- prometheus.MustNewConstMetric(c.poolUnused, prometheus.GaugeValue, float64(info.UnusedCount), info.TypeName)
			ch <- prometheus.MustNewConstMetric(c.poolUsing, prometheus.GaugeValue, float64(info.UsingCount), info.TypeName)
			ch <- prometheus.MustNewConstMetric(c.poolSpawns, prometheus.CounterValue, float64(info.SpawnCount), info.TypeName)
			ch <- prometheus.MustNewConstMetric(c.poolUnspawns, prometheus.CounterValue, float64(info.UnspawnCount), info.TypeName)
			ch <- prometheus.MustNewConstMetric(c.poolCreated, prometheus.CounterValue, float64(info.CreatedCount), info.TypeName)
			ch <- prometheus.MustNewConstMetric(c.poolDiscarded, prometheus.CounterValue, float64(info.DiscardedCount), info.TypeName)
		}
	}

	if c.machines != nil {
		infos := c.machines.GetAllMachineInfos()
		running := 0
		for _, info := range infos {
			if !info.Running {
				continue
			}
			running++
			ch <- prometheus.MustNewConstMetric(c.stateSeconds, prometheus.GaugeValue,
				info.CurrentStateTime.Seconds(), info.OwnerType, info.Name, info.CurrentState)
		}
		ch <- prometheus.MustNewConstMetric(c.machinesTotal, prometheus.GaugeValue, float64(len(infos)))
		ch <- prometheus.MustNewConstMetric(c.machinesRunning, prometheus.GaugeValue, float64(running))
	}
}

var (
	// FramesTotal counts frames executed by the host loop.
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "frames_total",
			Help:      "Total number of frames executed",
		},
	)

	// FrameDuration tracks the wall time spent updating the registries per
	// frame, in seconds.
	FrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "frame_duration_seconds",
			Help:      "Wall time spent in one frame update",
			Buckets: []float64{
				1e-5,  // 10μs
				1e-4,  // 100μs
				5e-4,  // 500μs
				1e-3,  // 1ms
				4e-3,  // 4ms
				8e-3,  // 8ms, half a 60 Hz frame
				16e-3, // 16ms, one 60 Hz frame
				33e-3, // 33ms, one 30 Hz frame
				1e-1,  // 100ms
			},
		},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
//
// Example:
//
//	timer := metrics.NewTimer()
//	machines.Update(delta, unscaled)
//	metrics.FrameDuration.Observe(timer.Stop().Seconds())
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
