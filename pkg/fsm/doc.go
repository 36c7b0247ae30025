// Package fsm provides a generic finite-state-machine engine.
//
// A machine drives one owner value through a fixed set of mutually
// exclusive states. Machines are created through a Registry, keyed by the
// owner type and a machine name, so several independent machines can exist
// per owner type:
//
//	machines := fsm.NewRegistry()
//	m, err := fsm.Create(machines, "locomotion", player, &Idle{}, &Run{})
//	if err != nil {
//	    return err
//	}
//	if err := fsm.Start[*Idle](m); err != nil {
//	    return err
//	}
//
//	// once per frame, from the host loop
//	machines.Update(delta, unscaledDelta)
//
// # Lifecycle
//
// A machine is NotStarted after creation, Running after Start and Destroyed
// after Destroy. It starts exactly once; restarting means destroying and
// creating it again. Every mutating call on a destroyed machine fails with an
// invalid-operation error.
//
// Destroyed machines are recycled through a cachepool.Registry, one
// collection per owner type. Callers hold an *FSM handle rather than the
// machine itself; a handle is bound to one incarnation, so a stale handle
// keeps reporting the machine as destroyed after it has been reused.
//
// # Thread safety
//
// Machines and registries are not synchronized and must be driven from a
// single goroutine.
package fsm
