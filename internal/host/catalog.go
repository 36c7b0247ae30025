package host

import (
	"reflect"
	"sort"
	"strings"

	"github.com/ajitpratap0/framekit/pkg/cachepool"
	"github.com/ajitpratap0/framekit/pkg/errors"
)

// Catalog maps configuration names to poolable types. It replaces runtime
// type discovery: only registered types can be pre-warmed from config.
type Catalog struct {
	types map[string]reflect.Type
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{types: make(map[string]reflect.Type)}
}

// Register adds t under name. Names are case-insensitive. It fails with an
// invalid-argument error if t cannot be pooled or name is empty, and with an
// invalid-operation error if name is taken.
func (c *Catalog) Register(name string, t reflect.Type) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return errors.New(errors.ErrorTypeInvalidArgument, "catalog name cannot be empty")
	}
	if err := cachepool.CheckType(t); err != nil {
		return err
	}
	if existing, ok := c.types[key]; ok {
		return errors.Newf(errors.ErrorTypeInvalidOperation, "catalog name %q is already bound to %s", key, existing).
			WithDetail("name", key)
	}
	c.types[key] = t
	return nil
}

// Lookup returns the type registered under name.
func (c *Catalog) Lookup(name string) (reflect.Type, bool) {
	t, ok := c.types[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds T to c under name.
func Register[T cachepool.Poolable](c *Catalog, name string) error {
	return c.Register(name, reflect.TypeFor[T]())
}
