// Package host provides the frame-driven runtime that owns the object pool
// and the state machine registry of one framekit instance.
//
// A Runtime replaces process-wide singletons with an explicit context
// object: it is created from a config.Config, started (pre-warming the pool
// from the type catalog), ticked once per frame and finally shut down,
// which destroys every state machine before clearing the pool.
//
// The registries themselves are single-threaded. Runtime serializes Tick,
// Do, the snapshot accessors and Shutdown behind one mutex so a signal
// handler, a metrics scrape and the frame loop cannot race. Callbacks that
// run inside a frame must use the registries directly and must not call
// back into the locking Runtime methods.
package host

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/pkg/cachepool"
	"github.com/ajitpratap0/framekit/pkg/config"
	"github.com/ajitpratap0/framekit/pkg/errors"
	"github.com/ajitpratap0/framekit/pkg/fsm"
	"github.com/ajitpratap0/framekit/pkg/inspect"
	"github.com/ajitpratap0/framekit/pkg/logger"
	"github.com/ajitpratap0/framekit/pkg/metrics"
	"github.com/ajitpratap0/framekit/pkg/observability"
)

// Runtime owns both registries and drives them frame by frame.
type Runtime struct {
	cfg     *config.Config
	catalog *Catalog
	logger  *zap.Logger

	mu        sync.Mutex
	pools     *cachepool.Registry
	machines  *fsm.Registry
	timeScale float64
	frame     uint64
	elapsed   time.Duration
	started   bool
	closed    bool

	frames metric.Int64Counter
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCatalog sets the catalog used to resolve pool.prewarm names.
func WithCatalog(c *Catalog) Option {
	return func(r *Runtime) {
		if c != nil {
			r.catalog = c
		}
	}
}

// New creates a runtime from cfg. The configuration is validated; the pool
// honours pool.strict_check and, with fsm.share_pool, also recycles state
// machines.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:       cfg,
		catalog:   NewCatalog(),
		timeScale: cfg.Runtime.TimeScale,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.With(zap.String("component", "runtime"), zap.String("runtime", cfg.Name))

	r.pools = cachepool.NewRegistry(
		cachepool.WithStrictCheck(cfg.Pool.StrictCheck),
		cachepool.WithLogger(r.logger),
	)
	fsmOpts := []fsm.RegistryOption{fsm.WithLogger(r.logger)}
	if cfg.FSM.SharePool {
		fsmOpts = append(fsmOpts, fsm.WithMachinePool(r.pools))
	}
	r.machines = fsm.NewRegistry(fsmOpts...)

	frames, err := observability.Meter().Int64Counter("framekit.runtime.frames",
		metric.WithDescription("Frames executed by the runtime"),
		metric.WithUnit("{frame}"))
	if err != nil {
		r.logger.Warn("failed to create frame counter", zap.Error(err))
		frames = noop.Int64Counter{}
	}
	r.frames = frames

	return r, nil
}

// Config returns the runtime configuration.
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Pools returns the object pool registry. Use it directly only from the
// frame loop goroutine or inside Do.
func (r *Runtime) Pools() *cachepool.Registry {
	return r.pools
}

// Machines returns the state machine registry. Use it directly only from
// the frame loop goroutine or inside Do.
func (r *Runtime) Machines() *fsm.Registry {
	return r.machines
}

// Start pre-warms the pool from pool.prewarm. Every name must be in the
// catalog. Start fails with an invalid-operation error if called twice or
// after Shutdown.
func (r *Runtime) Start(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "runtime.start",
		attribute.String("runtime", r.cfg.Name))
	defer func() { observability.EndSpan(span, err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New(errors.ErrorTypeInvalidOperation, "runtime is shut down")
	}
	if r.started {
		return errors.New(errors.ErrorTypeInvalidOperation, "runtime is already started")
	}

	names := make([]string, 0, len(r.cfg.Pool.Prewarm))
	for name := range r.cfg.Pool.Prewarm {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.prewarm(ctx, name, r.cfg.Pool.Prewarm[name]); err != nil {
			return err
		}
	}

	r.started = true
	r.logger.Info("runtime started",
		zap.Int("prewarmed_types", len(names)),
		zap.Int("frame_rate", r.cfg.Runtime.FrameRate),
		zap.Float64("time_scale", r.timeScale))
	return nil
}

func (r *Runtime) prewarm(ctx context.Context, name string, count int) (err error) {
	_, span := observability.StartSpan(ctx, "runtime.prewarm",
		attribute.String("type", name),
		attribute.Int("count", count))
	defer func() { observability.EndSpan(span, err) }()

	t, ok := r.catalog.Lookup(name)
	if !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "prewarm type %q is not in the catalog", name).
			WithDetail("name", name)
	}
	if err := r.pools.Reserve(t, count); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to prewarm pool").
			WithDetail("name", name)
	}
	r.logger.Debug("pool prewarmed", zap.String("type", t.String()), zap.Int("count", count))
	return nil
}

// SetTimeScale changes the factor applied to the scaled delta by Run and
// Step. Zero pauses scaled time while unscaled time keeps running.
func (r *Runtime) SetTimeScale(scale float64) error {
	if scale < 0 {
		return errors.New(errors.ErrorTypeInvalidArgument, "time scale cannot be negative")
	}
	r.mu.Lock()
	r.timeScale = scale
	r.mu.Unlock()
	return nil
}

// TimeScale returns the current time scale.
func (r *Runtime) TimeScale() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeScale
}

// Frame returns the number of frames executed so far.
func (r *Runtime) Frame() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// Elapsed returns the total unscaled time advanced so far.
func (r *Runtime) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Tick advances every state machine by one frame. It fails with an
// invalid-argument error for negative deltas and with an invalid-operation
// error after Shutdown.
func (r *Runtime) Tick(delta, unscaledDelta time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickLocked(delta, unscaledDelta)
}

func (r *Runtime) tickLocked(delta, unscaledDelta time.Duration) error {
	if r.closed {
		return errors.New(errors.ErrorTypeInvalidOperation, "runtime is shut down")
	}
	if delta < 0 || unscaledDelta < 0 {
		return errors.New(errors.ErrorTypeInvalidArgument, "frame delta cannot be negative")
	}

	timer := metrics.NewTimer()
	r.machines.Update(delta, unscaledDelta)
	r.frame++
	r.elapsed += unscaledDelta

	metrics.FramesTotal.Inc()
	metrics.FrameDuration.Observe(timer.Stop().Seconds())
	r.frames.Add(context.Background(), 1)
	return nil
}

// Step runs n frames of the configured fixed step back to back without
// waiting for wall time.
func (r *Runtime) Step(n int) error {
	step := r.cfg.Runtime.FrameDuration()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		if err := r.tickLocked(r.scaled(step), step); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) scaled(step time.Duration) time.Duration {
	return time.Duration(float64(step) * r.timeScale)
}

// Run ticks the runtime at the configured frame rate until ctx is done or,
// with runtime.max_frames set, that many frames have run in total. It
// returns nil when the frame limit is reached and ctx.Err() on
// cancellation.
func (r *Runtime) Run(ctx context.Context) error {
	step := r.cfg.Runtime.FrameDuration()
	limit := uint64(r.cfg.Runtime.MaxFrames)

	r.logger.Info("runtime loop started",
		zap.Duration("step", step),
		zap.Uint64("max_frames", limit))

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for {
		if limit > 0 && r.Frame() >= limit {
			r.logger.Info("runtime loop reached frame limit", zap.Uint64("frames", limit))
			return nil
		}

		select {
		case <-ctx.Done():
			r.logger.Info("runtime loop cancelled", zap.Uint64("frames", r.Frame()))
			return ctx.Err()
		case <-ticker.C:
			r.mu.Lock()
			err := r.tickLocked(r.scaled(step), step)
			r.mu.Unlock()
			if err != nil {
				return err
			}
		}
	}
}

// Do runs fn with exclusive access to the registries, e.g. to spawn or
// create machines from outside the frame loop.
func (r *Runtime) Do(fn func(pools *cachepool.Registry, machines *fsm.Registry) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New(errors.ErrorTypeInvalidOperation, "runtime is shut down")
	}
	return fn(r.pools, r.machines)
}

// GetAllCollectionInfos returns a pool snapshot.
func (r *Runtime) GetAllCollectionInfos() []cachepool.CollectionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pools.GetAllCollectionInfos()
}

// GetAllMachineInfos returns a state machine snapshot.
func (r *Runtime) GetAllMachineInfos() []fsm.MachineInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machines.GetAllMachineInfos()
}

// Report builds an inspection report of both registries.
func (r *Runtime) Report() *inspect.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return inspect.Build(r.pools, r.machines)
}

// Shutdown destroys every state machine, then clears the pool. Machines go
// first so states can still return pooled instances from OnExit and
// OnDestroy. A second call is a no-op.
func (r *Runtime) Shutdown(ctx context.Context) (err error) {
	_, span := observability.StartSpan(ctx, "runtime.shutdown",
		attribute.String("runtime", r.cfg.Name))
	defer func() { observability.EndSpan(span, err) }()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	machineCount := r.machines.Count()
	r.machines.Clear()
	collectionCount := r.pools.Count()
	r.pools.Clear()
	r.closed = true

	span.SetAttributes(
		attribute.Int("machines", machineCount),
		attribute.Int("collections", collectionCount),
		attribute.Int64("frames", int64(r.frame)),
	)
	r.logger.Info("runtime shut down",
		zap.Int("machines", machineCount),
		zap.Int("collections", collectionCount),
		zap.Uint64("frames", r.frame))
	return nil
}
