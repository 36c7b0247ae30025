package fsm_test

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/pkg/fsm"
)

type Door struct {
	Name string
}

type Closed struct {
	fsm.StateBase[*Door]
}

func (Closed) OnEnter(f *fsm.FSM[*Door]) {
	fmt.Println(f.Owner().Name, "closed")
}

func (Closed) OnUpdate(f *fsm.FSM[*Door], _, _ time.Duration) {
	if f.CurrentStateTime() >= 2*time.Second {
		_ = fsm.ChangeState[*Open](f)
	}
}

type Open struct {
	fsm.StateBase[*Door]
}

func (*Open) OnEnter(f *fsm.FSM[*Door]) {
	fmt.Println(f.Owner().Name, "open")
}

func (*Open) OnExit(f *fsm.FSM[*Door], isShutdown bool) {
	fmt.Println(f.Owner().Name, "leaving open, shutdown:", isShutdown)
}

// Example drives a two-state machine through a registry.
func Example() {
	machines := fsm.NewRegistry(fsm.WithLogger(zap.NewNop()))

	door, _ := fsm.Create(machines, "hinge", &Door{Name: "front"}, fsm.State[*Door](&Closed{}), &Open{})
	_ = fsm.Start[*Closed](door)

	for i := 0; i < 3; i++ {
		machines.Update(time.Second, time.Second)
	}
	fmt.Println(door.CurrentStateName())

	fsm.Destroy[*Door](machines, "hinge")
	fmt.Println(machines.Count())

	// Output:
	// front closed
	// front open
	// *fsm_test.Open
	// front leaving open, shutdown: true
	// 0
}

// ExampleFSM_SetData shows the per-machine blackboard.
func ExampleFSM_SetData() {
	door, _ := fsm.NewDefault(&Door{Name: "back"}, fsm.State[*Door](&Closed{}))

	_ = door.SetData("locked", true)
	locked, ok := fsm.GetData[bool](door, "locked")
	fmt.Println(locked, ok)

	// Output:
	// true true
}
