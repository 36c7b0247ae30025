package fsm

import (
	"reflect"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/pkg/cachepool"
	"github.com/ajitpratap0/framekit/pkg/errors"
	"github.com/ajitpratap0/framekit/pkg/logger"
)

type key struct {
	ownerType reflect.Type
	name      string
}

// entry is the type-erased view of a machine held by the registry.
type entry interface {
	incarnation() uint64
	tick(delta, unscaledDelta time.Duration, gen uint64)
	shutdown() error
	info() MachineInfo
}

func (m *machine[T]) incarnation() uint64 {
	return m.generation
}

func (m *machine[T]) tick(delta, unscaledDelta time.Duration, gen uint64) {
	if m.generation != gen || m.handle == nil {
		return
	}
	m.handle.Update(delta, unscaledDelta)
}

func (m *machine[T]) shutdown() error {
	if m.handle == nil {
		return nil
	}
	return m.handle.Destroy()
}

type scheduled struct {
	k   key
	e   entry
	gen uint64
}

// maxClearPasses bounds how many times Clear sweeps machines created by
// teardown callbacks before it stops accepting new ones.
const maxClearPasses = 16

// Registry owns every state machine keyed by (owner type, name) and drives
// their per-frame updates.
type Registry struct {
	machines map[key]entry
	pool     *cachepool.Registry
	logger   *zap.Logger

	// sealed rejects Create while Clear finishes its final sweep.
	sealed bool

	// scratch is reused by Update and Clear to iterate over a stable copy.
	scratch []scheduled
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMachinePool recycles destroyed machines through pool instead of a
// private cachepool.Registry.
func WithMachinePool(pool *cachepool.Registry) RegistryOption {
	return func(r *Registry) {
		if pool != nil {
			r.pool = pool
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		machines: make(map[key]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.With(zap.String("component", "fsm"))
	if r.pool == nil {
		r.pool = cachepool.NewRegistry(cachepool.WithLogger(r.logger))
	}
	return r
}

// Count returns the number of live machines.
func (r *Registry) Count() int {
	return len(r.machines)
}

// MachinePool returns the pool destroyed machines are recycled into.
func (r *Registry) MachinePool() *cachepool.Registry {
	return r.pool
}

// Update calls Update on every live machine. Machines created during the
// call are first updated on the next frame; machines destroyed during the
// call are skipped. Order across machines is unspecified.
func (r *Registry) Update(delta, unscaledDelta time.Duration) {
	if len(r.machines) == 0 {
		return
	}
	batch := r.snapshot()
	for _, s := range batch {
		s.e.tick(delta, unscaledDelta, s.gen)
	}
	r.release(batch)
}

// Clear destroys every machine and empties the registry. Machines created by
// OnExit or OnDestroy callbacks while clearing are destroyed too; after
// maxClearPasses sweeps Create is rejected until Clear returns.
func (r *Registry) Clear() {
	destroyed := 0
	for pass := 0; len(r.machines) > 0; pass++ {
		if pass == maxClearPasses {
			r.sealed = true
			r.logger.Warn("state machines keep spawning during clear, rejecting new ones",
				zap.Int("passes", pass),
				zap.Int("machines", len(r.machines)))
		}
		batch := r.snapshot()
		for _, s := range batch {
			if s.e.incarnation() != s.gen {
				continue
			}
			if err := s.e.shutdown(); err != nil {
				r.logger.Warn("failed to destroy state machine during clear", zap.Error(err))
			}
			if cur, ok := r.machines[s.k]; ok && cur == s.e {
				delete(r.machines, s.k)
			}
			destroyed++
		}
		r.release(batch)
	}
	r.sealed = false
	r.logger.Debug("registry cleared", zap.Int("machines", destroyed))
}

// GetAllMachineInfos returns a snapshot of every machine sorted by full name.
func (r *Registry) GetAllMachineInfos() []MachineInfo {
	infos := make([]MachineInfo, 0, len(r.machines))
	for _, e := range r.machines {
		infos = append(infos, e.info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].FullName < infos[j].FullName
	})
	return infos
}

func (r *Registry) snapshot() []scheduled {
	batch := r.scratch[:0]
	for k, e := range r.machines {
		batch = append(batch, scheduled{k: k, e: e, gen: e.incarnation()})
	}
	r.scratch = nil
	return batch
}

func (r *Registry) release(batch []scheduled) {
	clear(batch)
	r.scratch = batch[:0]
}

// Create builds a machine for owner, registers it under (T, name) and runs
// OnInit on every state. It fails with an invalid-operation error if a
// machine with the same owner type and name exists, and with an
// invalid-argument error for an empty name, a nil owner, or an empty,
// nil-holding or duplicated state list. Create is also an invalid-operation
// error while Clear is refusing new machines.
func Create[T any](r *Registry, name string, owner T, states ...State[T]) (*FSM[T], error) {
	if err := validate(name, owner, states); err != nil {
		return nil, err
	}
	k := key{ownerType: reflect.TypeFor[T](), name: name}
	if r.sealed {
		return nil, errors.Newf(errors.ErrorTypeInvalidOperation, "cannot create state machine %s while the registry is being cleared", fullName(k.ownerType, name)).
			WithDetail("owner_type", k.ownerType.String()).
			WithDetail("name", name)
	}
	if _, exists := r.machines[k]; exists {
		return nil, errors.Newf(errors.ErrorTypeInvalidOperation, "state machine %s already exists", fullName(k.ownerType, name)).
			WithDetail("owner_type", k.ownerType.String()).
			WithDetail("name", name)
	}

	m, err := cachepool.Spawn[*machine[T]](r.pool)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to allocate state machine")
	}
	r.machines[k] = m
	m.release = func() {
		if cur, ok := r.machines[k]; ok && cur == entry(m) {
			delete(r.machines, k)
		}
		if err := r.pool.Unspawn(m); err != nil {
			r.logger.Warn("failed to recycle state machine", zap.String("fsm", fullName(k.ownerType, k.name)), zap.Error(err))
		}
		r.logger.Debug("state machine destroyed", zap.String("fsm", fullName(k.ownerType, k.name)))
	}
	m.init(name, owner, states)

	r.logger.Debug("state machine created",
		zap.String("fsm", fullName(k.ownerType, name)),
		zap.Int("states", len(states)))
	return m.handle, nil
}

// CreateDefault creates the machine named DefaultName for owner type T.
func CreateDefault[T any](r *Registry, owner T, states ...State[T]) (*FSM[T], error) {
	return Create(r, DefaultName, owner, states...)
}

// Get returns the machine registered under (T, name), or nil.
func Get[T any](r *Registry, name string) *FSM[T] {
	e, ok := r.machines[key{ownerType: reflect.TypeFor[T](), name: name}]
	if !ok {
		return nil
	}
	m, ok := e.(*machine[T])
	if !ok {
		return nil
	}
	return m.handle
}

// GetDefault returns the machine named DefaultName for owner type T, or nil.
func GetDefault[T any](r *Registry) *FSM[T] {
	return Get[T](r, DefaultName)
}

// Has reports whether a machine is registered under (T, name).
func Has[T any](r *Registry, name string) bool {
	_, ok := r.machines[key{ownerType: reflect.TypeFor[T](), name: name}]
	return ok
}

// Destroy destroys and removes the machine registered under (T, name). It
// reports false, and does nothing, when no such machine exists.
func Destroy[T any](r *Registry, name string) bool {
	f := Get[T](r, name)
	if f == nil {
		return false
	}
	if err := f.Destroy(); err != nil {
		r.logger.Warn("failed to destroy state machine", zap.String("fsm", f.FullName()), zap.Error(err))
		return false
	}
	return true
}

// DestroyDefault destroys the machine named DefaultName for owner type T.
func DestroyDefault[T any](r *Registry) bool {
	return Destroy[T](r, DefaultName)
}
