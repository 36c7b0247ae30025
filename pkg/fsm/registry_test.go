package fsm

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/framekit/pkg/cachepool"
	"github.com/ajitpratap0/framekit/pkg/errors"
)

type turret struct {
	id int
}

type scanState struct {
	StateBase[*turret]
	updates int
}

func (s *scanState) OnUpdate(f *FSM[*turret], _, _ time.Duration) {
	s.updates++
}

type fireState struct {
	StateBase[*turret]
}

// spawnerState creates and destroys sibling machines from inside Update.
type spawnerState struct {
	StateBase[*turret]
	registry *Registry
	created  *FSM[*turret]
	victim   string
	updates  int
}

func (s *spawnerState) OnUpdate(f *FSM[*turret], _, _ time.Duration) {
	s.updates++
	if s.created == nil {
		s.created, _ = Create(s.registry, "spawned", &turret{id: 99}, State[*turret](&scanState{}))
		_ = Start[*scanState](s.created)
	}
	if s.victim != "" {
		Destroy[*turret](s.registry, s.victim)
		s.victim = ""
	}
}

// lurkState destroys its machine when left outside a shutdown.
type lurkState struct {
	StateBase[*turret]
}

func (s *lurkState) OnExit(f *FSM[*turret], isShutdown bool) {
	if !isShutdown {
		_ = f.Destroy()
	}
}

// heirState creates a successor machine when destroyed, up to remaining
// generations.
type heirState struct {
	StateBase[*turret]
	registry  *Registry
	name      string
	remaining int
	heirs     *[]*FSM[*turret]
	errs      *[]error
}

func (s *heirState) OnDestroy(_ *FSM[*turret]) {
	if s.remaining == 0 {
		return
	}
	next := &heirState{
		registry:  s.registry,
		name:      s.name + "+",
		remaining: s.remaining - 1,
		heirs:     s.heirs,
		errs:      s.errs,
	}
	f, err := Create(s.registry, next.name, &turret{}, State[*turret](next))
	if err != nil {
		*s.errs = append(*s.errs, err)
		return
	}
	*s.heirs = append(*s.heirs, f)
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(WithLogger(zaptest.NewLogger(t)))
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := newTestRegistry(t)
	owner := &turret{id: 1}

	f, err := Create(r, "brain", owner, State[*turret](&scanState{}), &fireState{})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Count())
	assert.True(t, Has[*turret](r, "brain"))
	assert.Equal(t, f, Get[*turret](r, "brain"))
	assert.Equal(t, "*fsm.turret.brain", f.FullName())
	assert.Nil(t, Get[*turret](r, "missing"))
	assert.Nil(t, Get[*robot](r, "brain"), "owner type is part of the key")
}

func TestRegistryCreateDuplicateIsInvalidOperation(t *testing.T) {
	r := newTestRegistry(t)

	_, err := Create(r, "brain", &turret{id: 1}, State[*turret](&scanState{}))
	require.NoError(t, err)

	_, err = Create(r, "brain", &turret{id: 2}, State[*turret](&scanState{}))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidOperation(err))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryCreateValidates(t *testing.T) {
	r := newTestRegistry(t)

	_, err := Create(r, "", &turret{}, State[*turret](&scanState{}))
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = Create[*turret](r, "brain", nil, State[*turret](&scanState{}))
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = Create[*turret](r, "brain", &turret{})
	assert.True(t, errors.IsInvalidArgument(err))

	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.MachinePool().Count(), "no machine allocated on validation failure")
}

func TestRegistryDefaultName(t *testing.T) {
	r := newTestRegistry(t)

	f, err := CreateDefault(r, &turret{}, State[*turret](&scanState{}))
	require.NoError(t, err)

	assert.Equal(t, DefaultName, f.Name())
	assert.Equal(t, f, GetDefault[*turret](r))
	assert.True(t, DestroyDefault[*turret](r))
	assert.Nil(t, GetDefault[*turret](r))
}

func TestRegistrySameOwnerTypeDifferentNames(t *testing.T) {
	r := newTestRegistry(t)
	scanA, scanB := &scanState{}, &scanState{}

	a, err := Create(r, "a", &turret{id: 1}, State[*turret](scanA))
	require.NoError(t, err)
	b, err := Create(r, "b", &turret{id: 1}, State[*turret](scanB))
	require.NoError(t, err)

	require.NoError(t, Start[*scanState](a))
	require.NoError(t, Start[*scanState](b))

	r.Update(time.Millisecond, time.Millisecond)
	r.Update(time.Millisecond, time.Millisecond)

	assert.Equal(t, 2, scanA.updates)
	assert.Equal(t, 2, scanB.updates)

	assert.True(t, Destroy[*turret](r, "a"))
	r.Update(time.Millisecond, time.Millisecond)

	assert.Equal(t, 2, scanA.updates)
	assert.Equal(t, 3, scanB.updates)
	assert.Equal(t, 3*time.Millisecond, b.CurrentStateTime())
}

func TestRegistryDestroyAbsent(t *testing.T) {
	r := newTestRegistry(t)

	assert.False(t, Destroy[*turret](r, "missing"))
	assert.False(t, DestroyDefault[*turret](r))
}

func TestRegistryDestroyThroughHandle(t *testing.T) {
	r := newTestRegistry(t)
	f, err := Create(r, "brain", &turret{}, State[*turret](&scanState{}))
	require.NoError(t, err)

	require.NoError(t, f.Destroy())

	assert.False(t, Has[*turret](r, "brain"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistryRecyclesMachines(t *testing.T) {
	r := newTestRegistry(t)
	machineType := reflect.TypeFor[*machine[*turret]]()

	first, err := Create(r, "brain", &turret{id: 1}, State[*turret](&scanState{}))
	require.NoError(t, err)
	require.NoError(t, Start[*scanState](first))
	require.NoError(t, first.SetData("ammo", 3))
	require.True(t, Destroy[*turret](r, "brain"))

	second, err := Create(r, "brain", &turret{id: 2}, State[*turret](&fireState{}))
	require.NoError(t, err)

	c, err := r.MachinePool().GetCollection(machineType)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CreatedCount(), "destroyed machine is reused")
	assert.Equal(t, 2, c.SpawnCount())
	assert.Equal(t, 1, c.UsingCount())

	// The stale handle must not observe or mutate the new incarnation.
	assert.True(t, first.IsDestroyed())
	assert.Equal(t, "", first.Name())
	assert.Nil(t, first.CurrentState())
	assert.True(t, errors.IsInvalidOperation(first.Destroy()))
	assert.True(t, errors.IsInvalidOperation(ChangeState[*fireState](first)))

	assert.Equal(t, 2, second.Owner().id)
	assert.False(t, second.HasData("ammo"), "blackboard does not leak across incarnations")
	assert.False(t, HasState[*scanState](second), "states do not leak across incarnations")
	assert.Equal(t, 1, second.StateCount())
}

func TestRegistrySharedMachinePool(t *testing.T) {
	pool := cachepool.NewRegistry(cachepool.WithLogger(zaptest.NewLogger(t)))
	r := NewRegistry(WithLogger(zaptest.NewLogger(t)), WithMachinePool(pool))

	_, err := Create(r, "brain", &turret{}, State[*turret](&scanState{}))
	require.NoError(t, err)

	assert.Same(t, pool, r.MachinePool())
	infos := pool.GetAllCollectionInfos()
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].UsingCount)

	r.Clear()
	infos = pool.GetAllCollectionInfos()
	assert.Equal(t, 0, infos[0].UsingCount)
	assert.Equal(t, 1, infos[0].UnusedCount)
}

func TestRegistryUpdateToleratesMutation(t *testing.T) {
	r := newTestRegistry(t)
	spawner := &spawnerState{registry: r}
	victimScan := &scanState{}

	s, err := Create(r, "spawner", &turret{}, State[*turret](spawner))
	require.NoError(t, err)
	require.NoError(t, Start[*spawnerState](s))
	v, err := Create(r, "victim", &turret{}, State[*turret](victimScan))
	require.NoError(t, err)
	require.NoError(t, Start[*scanState](v))
	spawner.victim = "victim"

	r.Update(time.Millisecond, time.Millisecond)

	assert.Equal(t, 1, spawner.updates)
	require.NotNil(t, spawner.created)
	assert.True(t, Has[*turret](r, "spawned"))
	assert.False(t, Has[*turret](r, "victim"))
	assert.LessOrEqual(t, victimScan.updates, 1, "victim may have ticked before it was destroyed")
	spawned := GetState[*scanState](spawner.created)
	assert.Equal(t, 0, spawned.updates, "machines created during Update tick on the next frame")

	r.Update(time.Millisecond, time.Millisecond)
	assert.Equal(t, 1, spawned.updates)
}

func TestRegistryClear(t *testing.T) {
	r := newTestRegistry(t)
	owner := &robot{}

	a, err := Create(r, "a", owner, State[*robot](&idleState{}), &walkState{})
	require.NoError(t, err)
	require.NoError(t, Start[*idleState](a))
	_, err = Create(r, "b", &turret{}, State[*turret](&scanState{}))
	require.NoError(t, err)
	owner.log = nil

	r.Clear()

	assert.Equal(t, 0, r.Count())
	assert.True(t, a.IsDestroyed())
	assert.Equal(t, []string{"idle.exit", "idle.destroy", "walk.destroy"}, owner.log)
	assert.Empty(t, r.GetAllMachineInfos())

	// Registry remains usable.
	_, err = Create(r, "a", owner, State[*robot](&idleState{}))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryChangeStateAfterExitDestroysRecycledMachine(t *testing.T) {
	r := newTestRegistry(t)
	f, err := Create(r, "brain", &turret{id: 1}, State[*turret](&lurkState{}), &fireState{})
	require.NoError(t, err)
	require.NoError(t, Start[*lurkState](f))

	err = ChangeState[*fireState](f)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidOperation(err))
	assert.True(t, f.IsDestroyed())
	assert.Equal(t, 0, r.Count())

	fresh, err := Create(r, "fresh", &turret{id: 2}, State[*turret](&scanState{}))
	require.NoError(t, err)
	assert.False(t, fresh.IsRunning())
	assert.Nil(t, fresh.CurrentState())
	require.NoError(t, Start[*scanState](fresh))
	assert.True(t, IsInState[*scanState](fresh))
}

func TestRegistryClearDestroysMachinesCreatedDuringTeardown(t *testing.T) {
	r := newTestRegistry(t)
	var heirs []*FSM[*turret]
	var errs []error
	_, err := Create(r, "origin", &turret{}, State[*turret](&heirState{
		registry: r, name: "late", remaining: 1, heirs: &heirs, errs: &errs,
	}))
	require.NoError(t, err)

	r.Clear()

	assert.Equal(t, 0, r.Count())
	require.Len(t, heirs, 1)
	assert.True(t, heirs[0].IsDestroyed())
	assert.Empty(t, errs)
}

func TestRegistryClearTerminatesOnEndlessSuccession(t *testing.T) {
	r := newTestRegistry(t)
	var heirs []*FSM[*turret]
	var errs []error
	_, err := Create(r, "origin", &turret{}, State[*turret](&heirState{
		registry: r, name: "heir", remaining: -1, heirs: &heirs, errs: &errs,
	}))
	require.NoError(t, err)

	r.Clear()

	assert.Equal(t, 0, r.Count())
	assert.Len(t, heirs, maxClearPasses)
	for _, h := range heirs {
		assert.True(t, h.IsDestroyed())
	}
	require.Len(t, errs, 1)
	assert.True(t, errors.IsInvalidOperation(errs[0]))

	_, err = Create(r, "after", &turret{}, State[*turret](&scanState{}))
	require.NoError(t, err, "the registry accepts machines again once cleared")
}

func TestRegistryGetAllMachineInfosSorted(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := Create(r, name, &turret{}, State[*turret](&scanState{}))
		require.NoError(t, err)
	}
	f, err := Create(r, "brain", &robot{}, State[*robot](&idleState{}))
	require.NoError(t, err)
	require.NoError(t, Start[*idleState](f))

	infos := r.GetAllMachineInfos()
	require.Len(t, infos, 4)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.FullName
	}
	assert.Equal(t, []string{
		"*fsm.robot.brain",
		"*fsm.turret.alpha",
		"*fsm.turret.mid",
		"*fsm.turret.zeta",
	}, names)
	assert.Equal(t, "*fsm.idleState", infos[0].CurrentState)
	assert.True(t, infos[0].Running)
	assert.False(t, infos[1].Running)
}
