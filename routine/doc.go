// Package routine implements the schedulable unit of a pipeline.
//
// A Routine runs Setup once, then MainLogic repeatedly until its own stop
// event or its component's stop event is set, then Cleanup exactly once.
// Cleanup also runs when Setup fails, when MainLogic returns an error and when
// any phase panics. Ordered handler lists on the embedded Base fire around
// each phase:
//
//	AfterSetup -> { BeforeLogic -> MainLogic -> AfterLogic }* -> BeforeCleanup
//
// Stopping is cooperative. The loop checks the stop events between MainLogic
// calls only, so a MainLogic that never returns keeps Execution.Join (and the
// owning component's Stop) blocked forever. MainLogic implementations should
// poll their inputs without blocking and report false when idle; the loop then
// waits briefly (see Base.SetIdleWait) or until a stop is requested.
//
// Routines are started through an Executor. ThreadExecutor uses a plain
// goroutine; ProcessExecutor pins the routine to a dedicated OS thread that is
// discarded when the routine exits.
//
// Routine types are registered in a Registry with their constructor
// parameters, so components can build them from declarative topologies:
//
//	reg := routine.NewRegistry()
//	_ = reg.Register(&routine.Registration{
//	    Name:       "Relay",
//	    Parameters: []routine.Parameter{{Name: "in_queue", Type: routine.ParamQueue, Required: true}},
//	    Factory:    newRelay,
//	})
package routine
