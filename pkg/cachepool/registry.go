package cachepool

import (
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/pkg/errors"
	"github.com/ajitpratap0/framekit/pkg/logger"
)

// Registry maps a pooled type to its Collection. Collections are created
// lazily on first access and kept until Clear.
type Registry struct {
	collections map[reflect.Type]*Collection
	factories   map[reflect.Type]Factory
	strictCheck bool
	logger      *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrictCheck toggles the type-compliance check run before a collection
// is created. It is on by default. Turning it off is the trusted fast path
// for type lists that were already validated; nil types are still rejected.
func WithStrictCheck(enabled bool) Option {
	return func(r *Registry) {
		r.strictCheck = enabled
	}
}

// WithLogger sets the logger used by the registry and its collections.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		collections: make(map[reflect.Type]*Collection),
		factories:   make(map[reflect.Type]Factory),
		strictCheck: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.With(zap.String("component", "cachepool"))
	return r
}

// StrictCheck reports whether type compliance is checked.
func (r *Registry) StrictCheck() bool {
	return r.strictCheck
}

// Count returns the number of live collections.
func (r *Registry) Count() int {
	return len(r.collections)
}

// RegisterFactory installs a custom constructor for t. It applies to the
// collection of t whether or not that collection already exists.
func (r *Registry) RegisterFactory(t reflect.Type, factory Factory) error {
	if err := r.checkType(t); err != nil {
		return err
	}
	if factory == nil {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "factory for %s cannot be nil", t)
	}
	r.factories[t] = factory
	if c, ok := r.collections[t]; ok {
		c.factory = factory
	}
	return nil
}

// GetCollection returns the collection of t, creating it on first access.
func (r *Registry) GetCollection(t reflect.Type) (*Collection, error) {
	if t == nil {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "type cannot be nil")
	}
	if c, ok := r.collections[t]; ok {
		return c, nil
	}
	if err := r.checkType(t); err != nil {
		return nil, err
	}

	factory, ok := r.factories[t]
	if !ok {
		factory = reflectFactory(t)
	}
	c := newCollection(t, factory, r.logger)
	r.collections[t] = c
	r.logger.Debug("collection created", zap.String("type", t.String()))
	return c, nil
}

// Spawn hands out an instance of t.
func (r *Registry) Spawn(t reflect.Type) (Poolable, error) {
	c, err := r.GetCollection(t)
	if err != nil {
		return nil, err
	}
	return c.Spawn()
}

// Unspawn returns inst to the collection of its runtime type. It never
// creates a collection: an instance whose type has none was not lent out by
// this registry and is rejected with an invalid-argument error.
func (r *Registry) Unspawn(inst Poolable) error {
	if isNil(inst) {
		return errors.New(errors.ErrorTypeInvalidArgument, "instance cannot be nil")
	}
	t := reflect.TypeOf(inst)
	c, ok := r.collections[t]
	if !ok {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "instance of %s is not in use: no collection for its type", t).
			WithDetail("type", t.String())
	}
	return c.Unspawn(inst)
}

// Reserve makes sure at least count idle instances of t exist.
func (r *Registry) Reserve(t reflect.Type, count int) error {
	c, err := r.GetCollection(t)
	if err != nil {
		return err
	}
	return c.Reserve(count)
}

// Discard drops up to count idle instances of t, oldest first.
func (r *Registry) Discard(t reflect.Type, count int) (int, error) {
	c, err := r.GetCollection(t)
	if err != nil {
		return 0, err
	}
	return c.Discard(count)
}

// DiscardAll drops every idle instance of t.
func (r *Registry) DiscardAll(t reflect.Type) (int, error) {
	c, err := r.GetCollection(t)
	if err != nil {
		return 0, err
	}
	return c.DiscardAll(), nil
}

// GetAllCollectionInfos returns a snapshot of every collection, sorted by
// type name. The snapshot is a copy and never changes after the call.
func (r *Registry) GetAllCollectionInfos() []CollectionInfo {
	infos := make([]CollectionInfo, 0, len(r.collections))
	for _, c := range r.collections {
		infos = append(infos, c.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].TypeName < infos[j].TypeName
	})
	return infos
}

// Clear discards the idle instances of every collection and empties the
// registry. Instances still held by callers are orphaned; returning them
// afterwards is rejected because the new collection never lent them out.
// Registered factories survive.
func (r *Registry) Clear() {
	discarded := 0
	for _, c := range r.collections {
		discarded += c.DiscardAll()
	}
	count := len(r.collections)
	clear(r.collections)
	r.logger.Debug("registry cleared",
		zap.Int("collections", count),
		zap.Int("discarded", discarded))
}

func (r *Registry) checkType(t reflect.Type) error {
	if t == nil {
		return errors.New(errors.ErrorTypeInvalidArgument, "type cannot be nil")
	}
	if !r.strictCheck {
		return nil
	}
	return CheckType(t)
}

// CollectionOf returns the collection of T.
func CollectionOf[T Poolable](r *Registry) (*Collection, error) {
	return r.GetCollection(reflect.TypeFor[T]())
}

// Spawn hands out an instance of T.
func Spawn[T Poolable](r *Registry) (T, error) {
	var zero T
	inst, err := r.Spawn(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return inst.(T), nil
}

// Reserve makes sure at least count idle instances of T exist.
func Reserve[T Poolable](r *Registry, count int) error {
	return r.Reserve(reflect.TypeFor[T](), count)
}

// Discard drops up to count idle instances of T, oldest first.
func Discard[T Poolable](r *Registry, count int) (int, error) {
	return r.Discard(reflect.TypeFor[T](), count)
}

// DiscardAll drops every idle instance of T.
func DiscardAll[T Poolable](r *Registry) (int, error) {
	return r.DiscardAll(reflect.TypeFor[T]())
}

// RegisterFactory installs a typed constructor for T.
func RegisterFactory[T Poolable](r *Registry, factory func() (T, error)) error {
	if factory == nil {
		return errors.New(errors.ErrorTypeInvalidArgument, "factory cannot be nil")
	}
	return r.RegisterFactory(reflect.TypeFor[T](), func() (Poolable, error) {
		inst, err := factory()
		if err != nil {
			return nil, err
		}
		return inst, nil
	})
}
