// Package cachepool provides a type-keyed pool of reusable instances.
//
// A Registry maps a type identity (reflect.Type) to a Collection. Each
// Collection owns the idle instances of exactly one poolable type and keeps
// lifetime counters for diagnostics. Collections are created lazily on the
// first request for their type and live until Registry.Clear.
//
// # Poolable types
//
// A poolable type is a pointer to a struct implementing Poolable:
//
//	type Bullet struct {
//	    X, Y   float64
//	    active bool
//	}
//
//	func (b *Bullet) OnSpawn()   { b.active = true }
//	func (b *Bullet) OnUnspawn() { *b = Bullet{} }
//
// Instances are constructed with reflect.New unless a custom Factory is
// registered with Registry.RegisterFactory.
//
// # Usage
//
//	pools := cachepool.NewRegistry()
//	_ = cachepool.Reserve[*Bullet](pools, 64)
//
//	b, err := cachepool.Spawn[*Bullet](pools)
//	if err != nil {
//	    return err
//	}
//	defer pools.Unspawn(b)
//
// # Reuse and discard order
//
// Spawn reuses the most recently returned instance (LIFO) so cache-warm
// objects are handed out first. Discard drops the oldest idle instances
// first (FIFO) so trimming never starves warm reuse.
//
// # Identity tracking
//
// Every lent-out instance is tracked by address only. The collection never
// holds a strong reference to an instance that is in use, so a leaked
// instance is never resurrected. Returning an instance that was never
// spawned from the collection, or returning it twice, is rejected with an
// invalid-argument error. Instances that were lent out when their
// collection was discarded (DiscardAll) are orphans: their return is
// accepted but they are dropped and counted as discarded.
//
// # Thread safety
//
// Registries and collections are not synchronized. They are meant to be
// driven from the host's single update goroutine.
package cachepool
