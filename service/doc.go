// Package service provides the PipelineManager, which owns the components of a
// pipeline and mutates the live topology, plus the HTTP server that exposes it.
//
// # Topology
//
// A pipeline is described declaratively:
//
//	components:
//	  camera:
//	    queues: [frames]
//	    execution_mode: thread
//	    routines:
//	      capture:
//	        routine_type_name: FrameGenerator
//	        queue: frames
//	        fps: 25
//	  display:
//	    component_type_name: VideoDisplay
//	    queues: [in]
//	    routines:
//	      show:
//	        routine_type_name: Display
//	        queue: in
//
// SetupComponents checks the structure against a JSON schema before creating
// anything. A malformed structure yields a list of violations and leaves the
// manager untouched. A well-formed one is applied in three passes: components,
// then queues, then routines, so routine queue references always resolve. The
// response is a single Result when every step succeeded and the list of failed
// steps otherwise; steps that succeeded are kept.
//
// # Operations
//
// Every topology operation returns a types.Result instead of an error:
//
//	m := service.NewPipelineManager(componentTypes, deps)
//	res := m.CreateComponent("camera", false, "")
//	res = m.CreateQueueToComponent("camera", "frames")
//	res = m.AddRoutineToComponent("camera", "FrameGenerator", "capture",
//		map[string]any{"queue": "frames", "fps": 25})
//	res = m.RunComponent("camera")
//
// Operations on a named component fail when the component does not exist.
// StopComponent blocks until every routine of the component has returned from
// its current iteration and run its cleanup; a routine that never returns from
// MainLogic blocks it indefinitely. StopAll stops components concurrently and
// bounds the wait by its context.
//
// # HTTP API
//
// RegisterHTTPHandlers mounts the API under a prefix:
//
//	GET    {prefix}/components
//	GET    {prefix}/components/{name}
//	POST   {prefix}/components/{name}
//	DELETE {prefix}/components/{name}
//	POST   {prefix}/components/{name}/run
//	POST   {prefix}/components/{name}/stop
//	POST   {prefix}/components/{name}/mode
//	POST   {prefix}/components/{name}/queues/{queue}
//	DELETE {prefix}/components/{name}/queues/{queue}
//	POST   {prefix}/components/{name}/routines/{routine}
//	DELETE {prefix}/components/{name}/routines/{routine}
//	PATCH  {prefix}/components/{name}/routines/{routine}/config
//	POST   {prefix}/setup
//	GET    {prefix}/routines/types
//	GET    {prefix}/types
//	GET    {prefix}/health
//
// Results are returned as {"Succeeded": bool, "Message": string} with status 200
// on success and 400 on failure. Server adds /healthz, /readyz, /health,
// /metrics and /openapi.json.
package service
