package cachepool

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/framekit/pkg/errors"
)

type notPoolable struct{}

type valuePoolable struct{}

type emptyPoolable struct{}

func (*emptyPoolable) OnSpawn()   {}
func (*emptyPoolable) OnUnspawn() {}

func (valuePoolable) OnSpawn()   {}
func (valuePoolable) OnUnspawn() {}

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	return NewRegistry(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func TestRegistryBulletScenario(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, Reserve[*bullet](r, 5))
	c, err := CollectionOf[*bullet](r)
	require.NoError(t, err)
	assert.Equal(t, 5, c.UnusedCount())
	assert.Equal(t, 5, c.CreatedCount())

	spawned := make([]*bullet, 0, 3)
	for i := 0; i < 3; i++ {
		b, err := Spawn[*bullet](r)
		require.NoError(t, err)
		spawned = append(spawned, b)
	}
	assert.Equal(t, 3, c.UsingCount())
	assert.Equal(t, 2, c.UnusedCount())

	require.NoError(t, r.Unspawn(spawned[0]))
	assert.Equal(t, 2, c.UsingCount())
	assert.Equal(t, 3, c.UnusedCount())

	n, err := DiscardAll[*bullet](r)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, c.UnusedCount())
	assert.Equal(t, 3, c.DiscardedCount())
	assert.Equal(t, 2, c.UsingCount())
	assert.Equal(t, 5, c.CreatedCount())
}

func TestRegistryGetCollectionIsLazyAndStable(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, 0, r.Count())

	first, err := r.GetCollection(reflect.TypeFor[*bullet]())
	require.NoError(t, err)
	second, err := r.GetCollection(reflect.TypeFor[*bullet]())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, reflect.TypeFor[*bullet](), first.Type())
}

func TestRegistryTypeCompliance(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name string
		typ  reflect.Type
	}{
		{"nil type", nil},
		{"interface", reflect.TypeFor[Poolable]()},
		{"struct value", reflect.TypeFor[valuePoolable]()},
		{"not poolable", reflect.TypeFor[*notPoolable]()},
		{"pointer to non-struct", reflect.TypeFor[*int]()},
		{"zero-size struct", reflect.TypeFor[*emptyPoolable]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.GetCollection(tt.typ)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
		})
	}
	assert.Equal(t, 0, r.Count())
}

func TestRegistryTrustedModeSkipsComplianceButNotNil(t *testing.T) {
	r := newTestRegistry(t, WithStrictCheck(false))
	assert.False(t, r.StrictCheck())

	_, err := r.GetCollection(reflect.TypeFor[*notPoolable]())
	require.NoError(t, err, "trusted input is not re-checked")

	_, err = r.Spawn(reflect.TypeFor[*notPoolable]())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction), "construction still fails safely")

	_, err = r.GetCollection(nil)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestRegistryUnspawnResolvesByRuntimeType(t *testing.T) {
	r := newTestRegistry(t)

	b, err := Spawn[*bullet](r)
	require.NoError(t, err)
	s, err := Spawn[*spark](r)
	require.NoError(t, err)

	require.NoError(t, r.Unspawn(s))
	require.NoError(t, r.Unspawn(b))
	assert.False(t, s.lit)

	infos := r.GetAllCollectionInfos()
	require.Len(t, infos, 2)
	for _, info := range infos {
		assert.Equal(t, 1, info.UnusedCount, info.TypeName)
		assert.Equal(t, 0, info.UsingCount, info.TypeName)
	}

	assert.True(t, errors.IsInvalidArgument(r.Unspawn(nil)))
}

func TestRegistryUnspawnUnknownTypeCreatesNothing(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Unspawn(&bullet{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.GetAllCollectionInfos())

	_, err = Spawn[*spark](r)
	require.NoError(t, err)
	assert.True(t, errors.IsInvalidArgument(r.Unspawn(&bullet{})))
	assert.Equal(t, 1, r.Count(), "only the spark collection exists")
}

func TestRegistryDiscardDelegates(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, Reserve[*bullet](r, 2))
	held, _ := Spawn[*bullet](r)

	n, err := Discard[*bullet](r, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, _ := CollectionOf[*bullet](r)
	assert.Equal(t, 1, c.UsingCount())
	assert.NotNil(t, held)
}

func TestRegistryFactory(t *testing.T) {
	r := newTestRegistry(t)
	built := 0
	require.NoError(t, RegisterFactory(r, func() (*bullet, error) {
		built++
		return &bullet{id: 100 + built}, nil
	}))

	b, err := Spawn[*bullet](r)
	require.NoError(t, err)
	assert.Equal(t, 101, b.id)

	err = r.RegisterFactory(reflect.TypeFor[*bullet](), nil)
	assert.True(t, errors.IsInvalidArgument(err))

	err = r.RegisterFactory(reflect.TypeFor[*notPoolable](), func() (Poolable, error) { return nil, nil })
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestRegistryFactoryAppliesToExistingCollection(t *testing.T) {
	r := newTestRegistry(t)
	_, err := CollectionOf[*bullet](r)
	require.NoError(t, err)

	require.NoError(t, RegisterFactory(r, func() (*bullet, error) {
		return &bullet{id: 7}, nil
	}))
	b, err := Spawn[*bullet](r)
	require.NoError(t, err)
	assert.Equal(t, 7, b.id)
}

func TestRegistryClear(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, Reserve[*bullet](r, 3))
	held, err := Spawn[*spark](r)
	require.NoError(t, err)

	r.Clear()
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.GetAllCollectionInfos())

	err = r.Unspawn(held)
	assert.True(t, errors.IsInvalidArgument(err), "instances from before Clear are unknown to the new collection")
}

func TestRegistryInfosAreSortedSnapshots(t *testing.T) {
	r := newTestRegistry(t)
	_, _ = Spawn[*spark](r)
	_, _ = Spawn[*bullet](r)

	infos := r.GetAllCollectionInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, "*cachepool.bullet", infos[0].TypeName)
	assert.Equal(t, "*cachepool.spark", infos[1].TypeName)

	infos[0].UsingCount = 99
	assert.Equal(t, 1, r.GetAllCollectionInfos()[0].UsingCount)
}
