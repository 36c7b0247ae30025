package fsm

import "time"

// State is one behavior of a machine driving an owner of type T.
//
// OnInit runs once when the machine is created, OnEnter and OnExit around
// every activation, OnUpdate once per frame while the state is current and
// OnDestroy once when the machine is destroyed. isShutdown is true when
// OnExit runs because the machine is being destroyed.
type State[T any] interface {
	OnInit(fsm *FSM[T])
	OnEnter(fsm *FSM[T])
	OnUpdate(fsm *FSM[T], delta, unscaledDelta time.Duration)
	OnExit(fsm *FSM[T], isShutdown bool)
	OnDestroy(fsm *FSM[T])
}

// StateBase implements every State callback as a no-op. Embed it and
// override only the callbacks a state needs.
type StateBase[T any] struct{}

func (StateBase[T]) OnInit(*FSM[T]) {}
func (StateBase[T]) OnEnter(*FSM[T]) {}
func (StateBase[T]) OnUpdate(*FSM[T], time.Duration, time.Duration) {}
func (StateBase[T]) OnExit(*FSM[T], bool) {}
func (StateBase[T]) OnDestroy(*FSM[T]) {}
