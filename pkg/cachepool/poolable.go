package cachepool

import (
	"reflect"

	"github.com/ajitpratap0/framekit/pkg/errors"
)

// Poolable is the capability contract of every pooled type.
// OnSpawn marks the instance in use; OnUnspawn marks it unused and should
// reset any per-use state.
type Poolable interface {
	OnSpawn()
	OnUnspawn()
}

// Discarder is implemented by pooled types that need to release resources
// when the pool drops them permanently.
type Discarder interface {
	OnDiscard()
}

// Factory constructs a new instance of a pooled type.
type Factory func() (Poolable, error)

var poolableType = reflect.TypeFor[Poolable]()

// CheckType reports whether t can be pooled: it must be a concrete pointer
// to a non-empty struct implementing Poolable. Lent-out instances are
// tracked by address, which empty structs do not have uniquely.
func CheckType(t reflect.Type) error {
	if t == nil {
		return errors.New(errors.ErrorTypeInvalidArgument, "type cannot be nil")
	}
	if t.Kind() == reflect.Interface {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "type %s is abstract", t).
			WithDetail("type", t.String())
	}
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "type %s must be a pointer to a struct", t).
			WithDetail("type", t.String())
	}
	if t.Elem().Size() == 0 {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "type %s has zero size; its instances share one address", t).
			WithDetail("type", t.String())
	}
	if !t.Implements(poolableType) {
		return errors.Newf(errors.ErrorTypeInvalidArgument, "type %s does not implement cachepool.Poolable", t).
			WithDetail("type", t.String())
	}
	return nil
}

// reflectFactory builds instances of t with reflect.New.
func reflectFactory(t reflect.Type) Factory {
	return func() (Poolable, error) {
		if t.Kind() != reflect.Pointer {
			return nil, errors.Newf(errors.ErrorTypeConstruction, "cannot construct non-pointer type %s", t)
		}
		p, ok := reflect.New(t.Elem()).Interface().(Poolable)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConstruction, "type %s does not implement cachepool.Poolable", t)
		}
		return p, nil
	}
}

// isNil reports whether p is nil or a typed nil pointer.
func isNil(p Poolable) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// identity returns the address used to track a lent-out instance.
func identity(p Poolable) uintptr {
	v := reflect.ValueOf(p)
	if v.Kind() == reflect.Pointer {
		return v.Pointer()
	}
	return 0
}
