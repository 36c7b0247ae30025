package fsm

import (
	"reflect"
	"time"

	"github.com/ajitpratap0/framekit/pkg/errors"
)

// DefaultName is the name of a machine created without one.
const DefaultName = "default"

// machine is the recyclable state of one state machine. It implements
// cachepool.Poolable so destroyed machines can be reused for the same owner
// type.
type machine[T any] struct {
	name      string
	owner     T
	ownerType reflect.Type
	states    map[reflect.Type]State[T]
	order     []State[T]
	data      map[string]any

	current     State[T]
	currentTime time.Duration
	destroying  bool
	destroyed   bool
	exiting     bool

	// generation changes every time the machine is recycled; handle is
	// bound to the current one.
	generation uint64
	handle     *FSM[T]
	release    func()
}

// OnSpawn binds a fresh handle to the reused machine.
func (m *machine[T]) OnSpawn() {
	m.handle = &FSM[T]{m: m, gen: m.generation}
}

// OnUnspawn resets the machine for reuse and invalidates old handles.
func (m *machine[T]) OnUnspawn() {
	var zero T
	m.name = ""
	m.owner = zero
	m.ownerType = nil
	clear(m.states)
	clear(m.order)
	m.order = m.order[:0]
	clear(m.data)
	m.current = nil
	m.currentTime = 0
	m.destroying = false
	m.destroyed = false
	m.exiting = false
	m.release = nil
	m.handle = nil
	m.generation++
}

// FSM is a handle to a state machine driving an owner of type T.
//
// Handles are bound to one machine incarnation. Once the machine has been
// destroyed every mutating call fails with an invalid-operation error, and
// accessors report zero values after the machine has been recycled.
type FSM[T any] struct {
	m   *machine[T]
	gen uint64
}

// New creates a standalone machine that is not tracked by any Registry and
// is not recycled after Destroy. It fails with an invalid-argument error if
// name is empty, owner is nil, states is empty or holds a nil entry or two
// states of the same concrete type. OnInit runs on every state in order.
func New[T any](name string, owner T, states ...State[T]) (*FSM[T], error) {
	if err := validate(name, owner, states); err != nil {
		return nil, err
	}
	m := &machine[T]{}
	m.OnSpawn()
	m.init(name, owner, states)
	return m.handle, nil
}

// NewDefault creates a standalone machine named DefaultName.
func NewDefault[T any](owner T, states ...State[T]) (*FSM[T], error) {
	return New(DefaultName, owner, states...)
}

func validate[T any](name string, owner T, states []State[T]) error {
	if name == "" {
		return errors.New(errors.ErrorTypeInvalidArgument, "state machine name cannot be empty")
	}
	if isNilValue(owner) {
		return errors.New(errors.ErrorTypeInvalidArgument, "state machine owner cannot be nil").
			WithDetail("name", name)
	}
	if len(states) == 0 {
		return errors.New(errors.ErrorTypeInvalidArgument, "state machine needs at least one state").
			WithDetail("name", name)
	}

	seen := make(map[reflect.Type]struct{}, len(states))
	for i, s := range states {
		if isNilValue(s) {
			return errors.Newf(errors.ErrorTypeInvalidArgument, "state at index %d is nil", i).
				WithDetail("name", name)
		}
		t := reflect.TypeOf(s)
		if _, dup := seen[t]; dup {
			return errors.Newf(errors.ErrorTypeInvalidArgument, "state %s is registered twice", t).
				WithDetail("name", name)
		}
		seen[t] = struct{}{}
	}
	return nil
}

func (m *machine[T]) init(name string, owner T, states []State[T]) {
	m.name = name
	m.owner = owner
	m.ownerType = reflect.TypeFor[T]()
	m.current = nil
	m.currentTime = 0
	m.destroying = false
	m.destroyed = false
	m.exiting = false
	clear(m.states)
	clear(m.order)
	m.order = m.order[:0]
	clear(m.data)
	if m.states == nil {
		m.states = make(map[reflect.Type]State[T], len(states))
	}
	for _, s := range states {
		m.states[reflect.TypeOf(s)] = s
		m.order = append(m.order, s)
	}
	for _, s := range m.order {
		s.OnInit(m.handle)
	}
}

// live returns the machine if the handle still refers to its incarnation.
func (f *FSM[T]) live() (*machine[T], bool) {
	if f == nil || f.m == nil || f.m.generation != f.gen {
		return nil, false
	}
	return f.m, true
}

// mutable returns the machine if it may still be mutated.
func (f *FSM[T]) mutable(op string) (*machine[T], error) {
	m, ok := f.live()
	if !ok || m.destroyed || m.destroying {
		return nil, errors.Newf(errors.ErrorTypeInvalidOperation, "cannot %s: state machine is destroyed", op)
	}
	return m, nil
}

// Name returns the machine name.
func (f *FSM[T]) Name() string {
	if m, ok := f.live(); ok {
		return m.name
	}
	return ""
}

// FullName returns the owner type and machine name joined by a dot.
func (f *FSM[T]) FullName() string {
	m, ok := f.live()
	if !ok {
		return ""
	}
	return fullName(m.ownerType, m.name)
}

// Owner returns the owner the machine drives.
func (f *FSM[T]) Owner() T {
	if m, ok := f.live(); ok {
		return m.owner
	}
	var zero T
	return zero
}

// OwnerType returns the static owner type used as part of the registry key.
func (f *FSM[T]) OwnerType() reflect.Type {
	return reflect.TypeFor[T]()
}

// StateCount returns the number of registered states.
func (f *FSM[T]) StateCount() int {
	if m, ok := f.live(); ok {
		return len(m.order)
	}
	return 0
}

// IsRunning reports whether the machine has been started and not destroyed.
func (f *FSM[T]) IsRunning() bool {
	m, ok := f.live()
	return ok && !m.destroyed && m.current != nil
}

// IsDestroyed reports whether the machine has been destroyed. A handle to a
// recycled machine always reports true.
func (f *FSM[T]) IsDestroyed() bool {
	m, ok := f.live()
	return !ok || m.destroyed
}

// CurrentState returns the current state, or nil before Start.
func (f *FSM[T]) CurrentState() State[T] {
	if m, ok := f.live(); ok {
		return m.current
	}
	return nil
}

// CurrentStateName returns the concrete type name of the current state, or
// an empty string before Start.
func (f *FSM[T]) CurrentStateName() string {
	s := f.CurrentState()
	if s == nil {
		return ""
	}
	return reflect.TypeOf(s).String()
}

// CurrentStateTime returns the unscaled time spent in the current state.
func (f *FSM[T]) CurrentStateTime() time.Duration {
	if m, ok := f.live(); ok {
		return m.currentTime
	}
	return 0
}

// StartByType enters the state of type t. It fails with an
// invalid-operation error if the machine is destroyed or already started,
// and with a not-found error if no state of type t is registered.
func (f *FSM[T]) StartByType(t reflect.Type) error {
	m, err := f.mutable("start")
	if err != nil {
		return err
	}
	if m.current != nil {
		return errors.New(errors.ErrorTypeInvalidOperation, "state machine is already started").
			WithDetail("fsm", fullName(m.ownerType, m.name))
	}
	next, err := m.lookup(t)
	if err != nil {
		return err
	}

	m.current = next
	m.currentTime = 0
	next.OnEnter(m.handle)
	return nil
}

// ChangeStateByType leaves the current state and enters the state of type t.
// The outgoing state's OnExit always runs before the incoming state's
// OnEnter. It fails with an invalid-operation error if the machine is
// destroyed or not started, and with a not-found error if no state of type t
// is registered. Calling it from the outgoing state's OnExit is an
// invalid-operation error. If OnExit destroys the machine, the transition is
// abandoned: no state is entered and an invalid-operation error is returned.
func (f *FSM[T]) ChangeStateByType(t reflect.Type) error {
	m, err := f.mutable("change state")
	if err != nil {
		return err
	}
	if m.current == nil {
		return errors.New(errors.ErrorTypeInvalidOperation, "state machine is not started").
			WithDetail("fsm", fullName(m.ownerType, m.name))
	}
	if m.exiting {
		return errors.New(errors.ErrorTypeInvalidOperation, "cannot change state while leaving the current state").
			WithDetail("fsm", fullName(m.ownerType, m.name))
	}
	next, err := m.lookup(t)
	if err != nil {
		return err
	}

	m.exiting = true
	m.current.OnExit(m.handle, false)

	// OnExit may have destroyed the machine, possibly recycling it for
	// another owner.
	if _, err := f.mutable("change state"); err != nil {
		return err
	}
	m.exiting = false

	m.current = next
	m.currentTime = 0
	next.OnEnter(m.handle)
	return nil
}

// Update advances the current state. It is a no-op before Start and after
// Destroy. unscaledDelta accumulates into CurrentStateTime; both deltas are
// passed to OnUpdate.
func (f *FSM[T]) Update(delta, unscaledDelta time.Duration) {
	m, ok := f.live()
	if !ok || m.destroyed || m.destroying || m.current == nil {
		return
	}
	m.currentTime += unscaledDelta
	m.current.OnUpdate(m.handle, delta, unscaledDelta)
}

// Destroy shuts the machine down: OnExit(isShutdown=true) on the current
// state if any, then OnDestroy on every state in registration order. It
// fails with an invalid-operation error if the machine is already destroyed.
func (f *FSM[T]) Destroy() error {
	m, err := f.mutable("destroy")
	if err != nil {
		return err
	}
	m.destroying = true

	if m.current != nil {
		m.current.OnExit(m.handle, true)
	}
	for _, s := range m.order {
		s.OnDestroy(m.handle)
	}

	m.current = nil
	m.currentTime = 0
	clear(m.data)
	m.destroying = false
	m.exiting = false
	m.destroyed = true

	if m.release != nil {
		m.release()
	}
	return nil
}

// GetStateByType returns the registered state of type t, or nil.
func (f *FSM[T]) GetStateByType(t reflect.Type) State[T] {
	m, ok := f.live()
	if !ok || t == nil {
		return nil
	}
	return m.states[t]
}

// HasStateByType reports whether a state of type t is registered.
func (f *FSM[T]) HasStateByType(t reflect.Type) bool {
	return f.GetStateByType(t) != nil
}

// GetAllStates returns the registered states in registration order.
func (f *FSM[T]) GetAllStates() []State[T] {
	m, ok := f.live()
	if !ok {
		return nil
	}
	out := make([]State[T], len(m.order))
	copy(out, m.order)
	return out
}

// SetData stores a value on the machine's blackboard. Values are cleared
// when the machine is destroyed.
func (f *FSM[T]) SetData(name string, value any) error {
	m, err := f.mutable("set data")
	if err != nil {
		return err
	}
	if name == "" {
		return errors.New(errors.ErrorTypeInvalidArgument, "data name cannot be empty")
	}
	if m.data == nil {
		m.data = make(map[string]any)
	}
	m.data[name] = value
	return nil
}

// GetData returns a blackboard value.
func (f *FSM[T]) GetData(name string) (any, bool) {
	m, ok := f.live()
	if !ok {
		return nil, false
	}
	v, found := m.data[name]
	return v, found
}

// HasData reports whether a blackboard value exists.
func (f *FSM[T]) HasData(name string) bool {
	_, ok := f.GetData(name)
	return ok
}

// RemoveData deletes a blackboard value and reports whether it existed.
func (f *FSM[T]) RemoveData(name string) bool {
	m, ok := f.live()
	if !ok {
		return false
	}
	if _, found := m.data[name]; !found {
		return false
	}
	delete(m.data, name)
	return true
}

// Info returns a snapshot of the machine.
func (f *FSM[T]) Info() MachineInfo {
	m, ok := f.live()
	if !ok {
		return MachineInfo{OwnerType: reflect.TypeFor[T]().String(), Destroyed: true}
	}
	return m.info()
}

func (m *machine[T]) lookup(t reflect.Type) (State[T], error) {
	if t == nil {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "state type cannot be nil")
	}
	s, ok := m.states[t]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "state %s is not registered", t).
			WithDetail("fsm", fullName(m.ownerType, m.name))
	}
	return s, nil
}

func (m *machine[T]) info() MachineInfo {
	info := MachineInfo{
		Name:             m.name,
		OwnerType:        m.ownerType.String(),
		FullName:         fullName(m.ownerType, m.name),
		StateCount:       len(m.order),
		CurrentStateTime: m.currentTime,
		Running:          !m.destroyed && m.current != nil,
		Destroyed:        m.destroyed,
	}
	if m.current != nil {
		info.CurrentState = reflect.TypeOf(m.current).String()
	}
	return info
}

// Start enters the registered state of type S.
func Start[S State[T], T any](f *FSM[T]) error {
	return f.StartByType(reflect.TypeFor[S]())
}

// ChangeState transitions to the registered state of type S.
func ChangeState[S State[T], T any](f *FSM[T]) error {
	return f.ChangeStateByType(reflect.TypeFor[S]())
}

// GetState returns the registered state of type S, or the zero value.
func GetState[S State[T], T any](f *FSM[T]) S {
	s, _ := f.GetStateByType(reflect.TypeFor[S]()).(S)
	return s
}

// HasState reports whether a state of type S is registered.
func HasState[S State[T], T any](f *FSM[T]) bool {
	return f.HasStateByType(reflect.TypeFor[S]())
}

// IsInState reports whether the current state is of type S.
func IsInState[S State[T], T any](f *FSM[T]) bool {
	cur := f.CurrentState()
	if cur == nil {
		return false
	}
	_, ok := cur.(S)
	return ok
}

// GetData returns a typed blackboard value.
func GetData[V any, T any](f *FSM[T], name string) (V, bool) {
	v, ok := f.GetData(name)
	if !ok {
		var zero V
		return zero, false
	}
	typed, ok := v.(V)
	return typed, ok
}

func fullName(ownerType reflect.Type, name string) string {
	if ownerType == nil {
		return name
	}
	if name == "" {
		return ownerType.String()
	}
	return ownerType.String() + "." + name
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
