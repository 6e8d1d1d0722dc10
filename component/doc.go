// Package component provides the Component: a named owner of queues and
// routines that starts and stops them together.
//
// # Overview
//
// A Component holds a map of queues and a map of routines. Routines reference
// queues of the same component by name through their constructor arguments, and
// a queue cannot be removed while a registered routine still uses it. Every
// structural operation returns a types.Result instead of an error so that a
// manager can report the outcome verbatim to remote callers.
//
// # Lifecycle
//
// The component owns a routine.StopEvent shared with every routine it registers.
// The event is set while the component is stopped.
//
//	c := component.New("camera", deps)
//	c.CreateQueue("frames")
//	c.AddRoutine("FrameGenerator", "capture", map[string]any{"queue": "frames"})
//	res := c.Run()   // clears the stop event and launches every routine
//	res = c.Stop()   // sets the stop event and joins every routine
//
// Run launches routines in name order and waits for each Setup to return. If
// one fails, the routines already started are stopped and Run fails. Routines
// added while the component is running start immediately.
//
// Stop joins unconditionally. A routine that never returns from MainLogic
// blocks Stop; MainLogic implementations must not block indefinitely.
//
// # Execution Modes
//
// Routines are bound to a routine.Executor chosen by the component's execution
// mode ("thread" or "process"). ChangeExecutionMode rebinds every routine and,
// when the component is running, restarts it on the new executor.
//
// # Component Types
//
// Registry maps type names to factories. The built-in "Component" type is an
// empty component; other types pre-create queues and routines. Registration is
// explicit: each package exports a Register function called from
// componentregistry.
package component
