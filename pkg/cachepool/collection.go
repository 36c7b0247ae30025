package cachepool

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/pkg/errors"
)

// Collection is the reusable-instance pool of exactly one poolable type.
//
// Idle instances are owned by the collection. Lent-out instances are owned
// by the caller and only tracked by address, together with the discard
// generation they were spawned in, so the collection can reject unknown or
// duplicate returns and drop orphans after DiscardAll.
//
// Invariant, after every operation:
//
//	CreatedCount() - DiscardedCount() == UnusedCount() + UsingCount()
type Collection struct {
	cacheType reflect.Type
	factory   Factory
	logger    *zap.Logger

	// unused is ordered oldest first; Spawn pops from the back and Discard
	// trims from the front.
	unused []Poolable

	// using maps the address of every lent-out instance to the generation
	// it was spawned in.
	using      map[uintptr]uint64
	usingCount int
	generation uint64

	spawnCount     int
	unspawnCount   int
	createdCount   int
	discardedCount int
}

func newCollection(t reflect.Type, factory Factory, logger *zap.Logger) *Collection {
	return &Collection{
		cacheType: t,
		factory:   factory,
		logger:    logger.With(zap.String("type", t.String())),
		using:     make(map[uintptr]uint64),
	}
}

// Type returns the pooled type. It never changes after construction.
func (c *Collection) Type() reflect.Type {
	return c.cacheType
}

// UnusedCount returns the number of idle instances.
func (c *Collection) UnusedCount() int {
	return len(c.unused)
}

// UsingCount returns the number of instances currently lent out.
func (c *Collection) UsingCount() int {
	return c.usingCount
}

// SpawnCount returns the lifetime number of successful Spawn calls.
func (c *Collection) SpawnCount() int {
	return c.spawnCount
}

// UnspawnCount returns the lifetime number of accepted Unspawn calls.
func (c *Collection) UnspawnCount() int {
	return c.unspawnCount
}

// CreatedCount returns the lifetime number of constructed instances.
func (c *Collection) CreatedCount() int {
	return c.createdCount
}

// DiscardedCount returns the lifetime number of permanently dropped instances.
func (c *Collection) DiscardedCount() int {
	return c.discardedCount
}

// Spawn hands out an instance. The most recently returned idle instance is
// reused first; when none is idle a new one is constructed. The instance's
// OnSpawn runs before it is returned. A constructor failure is returned to
// the caller and leaves the counters untouched.
func (c *Collection) Spawn() (Poolable, error) {
	var inst Poolable
	if n := len(c.unused); n > 0 {
		inst = c.unused[n-1]
		c.unused[n-1] = nil
		c.unused = c.unused[:n-1]
	} else {
		created, err := c.construct()
		if err != nil {
			return nil, err
		}
		inst = created
	}

	id := identity(inst)
	if _, exists := c.using[id]; exists {
		// An instance leaked earlier was collected and its address reused.
		// The stale entry is replaced; the leaked instance still counts as in use.
		c.logger.Warn("spawned instance shares address with a leaked instance",
			zap.Uintptr("address", id))
	}
	c.using[id] = c.generation
	c.usingCount++
	c.spawnCount++

	inst.OnSpawn()
	return inst, nil
}

// Unspawn returns an instance to the collection.
//
// It fails with an invalid-argument error when inst is nil, is not of the
// collection's type, or is not currently lent out by this collection
// (never spawned here, or already returned). An instance lent out before
// the last DiscardAll is accepted but dropped instead of re-pooled.
func (c *Collection) Unspawn(inst Poolable) error {
	if isNil(inst) {
		return errors.New(errors.ErrorTypeInvalidArgument, "instance cannot be nil").
			WithDetail("type", c.cacheType.String())
	}
	if t := reflect.TypeOf(inst); t != c.cacheType {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "instance of type %s does not belong to collection %s", t, c.cacheType).
			WithDetail("type", c.cacheType.String()).
			WithDetail("instance_type", t.String())
	}

	id := identity(inst)
	gen, ok := c.using[id]
	if !ok {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "instance of %s is not in use: never spawned or already unspawned", c.cacheType).
			WithDetail("type", c.cacheType.String())
	}

	delete(c.using, id)
	c.usingCount--
	c.unspawnCount++
	inst.OnUnspawn()

	if gen != c.generation {
		c.drop(inst)
		c.logger.Debug("dropped orphaned instance returned after discard")
		return nil
	}

	c.unused = append(c.unused, inst)
	return nil
}

// Reserve makes sure at least count idle instances exist by constructing
// the missing ones directly into the idle set. In-use instances are not
// considered.
func (c *Collection) Reserve(count int) error {
	if count < 0 {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "reserve count cannot be negative: %d", count).
			WithDetail("type", c.cacheType.String())
	}

	for len(c.unused) < count {
		inst, err := c.construct()
		if err != nil {
			return err
		}
		c.unused = append(c.unused, inst)
	}
	return nil
}

// Discard permanently drops up to count idle instances, oldest first, and
// returns how many were dropped. Asking for more than are idle is not an
// error; in-use instances are never touched.
func (c *Collection) Discard(count int) (int, error) {
	if count < 0 {
		return 0, errors.Newf(errors.ErrorTypeInvalidArgument, "discard count cannot be negative: %d", count).
			WithDetail("type", c.cacheType.String())
	}

	n := count
	if n > len(c.unused) {
		c.logger.Debug("discarding fewer instances than requested",
			zap.Int("requested", count),
			zap.Int("available", len(c.unused)))
		n = len(c.unused)
	}
	if n == 0 {
		return 0, nil
	}

	for i := 0; i < n; i++ {
		c.drop(c.unused[i])
	}
	remaining := copy(c.unused, c.unused[n:])
	clear(c.unused[remaining:])
	c.unused = c.unused[:remaining]
	return n, nil
}

// DiscardAll drops every idle instance. Instances currently in use stay
// valid for their holders; when they come back they are dropped rather than
// re-pooled.
func (c *Collection) DiscardAll() int {
	n, _ := c.Discard(len(c.unused))
	c.generation++
	return n
}

// Info returns a point-in-time snapshot of the collection.
func (c *Collection) Info() CollectionInfo {
	return CollectionInfo{
		Type:           c.cacheType,
		TypeName:       c.cacheType.String(),
		UnusedCount:    c.UnusedCount(),
		UsingCount:     c.usingCount,
		SpawnCount:     c.spawnCount,
		UnspawnCount:   c.unspawnCount,
		CreatedCount:   c.createdCount,
		DiscardedCount: c.discardedCount,
	}
}

func (c *Collection) construct() (Poolable, error) {
	inst, err := c.factory()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConstruction, "failed to construct "+c.cacheType.String()).
			WithDetail("type", c.cacheType.String())
	}
	if isNil(inst) {
		return nil, errors.Newf(errors.ErrorTypeConstruction, "factory for %s returned nil", c.cacheType).
			WithDetail("type", c.cacheType.String())
	}
	if t := reflect.TypeOf(inst); t != c.cacheType {
		return nil, errors.Newf(errors.ErrorTypeConstruction, "factory for %s returned %s", c.cacheType, t).
			WithDetail("type", c.cacheType.String())
	}
	c.createdCount++
	return inst, nil
}

func (c *Collection) drop(inst Poolable) {
	if d, ok := inst.(Discarder); ok {
		d.OnDiscard()
	}
	c.discardedCount++
}
