// Package testutil provides test doubles and fixtures for PipeRT packages.
//
// # Routines
//
// DummyRoutine counts its Setup, MainLogic and Cleanup calls and reports
// DummyLatency to the routine's metrics collector on every iteration.
// StopAfterLogic installs an AfterLogic handler that sets the routine's stop
// event, so a run ends after one iteration:
//
//	r := testutil.NewDummyRoutine("r1")
//	r.StopAfterLogic()
//
// DummyRoutineWithQueue drains one queue and reports that queue from UsesQueue.
// NewRoutineRegistry returns a routine.Registry with both types registered as
// "DummyRoutine" and "DummyRoutineWithQueue".
//
// # Components
//
// NewDummyComponent is a component factory that pre-creates one queue.
// NewComponentRegistry registers it as "DummyComponent".
//
// # Topologies
//
// TopologyBuilder assembles the declarative structure accepted by
// service.PipelineManager.SetupComponents:
//
//	spec := testutil.NewTopology().
//		Component("camera").
//		Queues("frames").
//		Routine("capture", "FrameGenerator", map[string]any{"queue": "frames"}).
//		Done().
//		Build()
//
// # Transport
//
// MockNATSClient is an in-memory natsclient.PubSub that stores published
// messages per subject and calls subscribers synchronously.
package testutil
