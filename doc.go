// Package pipert is a runtime for real-time video pipelines built from small,
// independently scheduled units of work.
//
// # Building blocks
//
// A routine (package routine) is the unit of scheduling. It is set up once,
// runs its main logic in a loop until it is told to stop, and is always cleaned
// up. Routines exchange messages (package message) through bounded queues
// (package queue) that drop the oldest element when full, so a slow consumer
// sees fresh frames instead of a growing backlog.
//
// A component (package component) owns a set of named queues and routines and
// starts and stops them together, either on goroutines or on dedicated OS
// threads. The pipeline manager (package service) owns every component of a
// pipeline, builds whole topologies from their declarative form and exposes the
// same operations over HTTP.
//
//	┌──────────────────────────────────────────┐
//	│            PipelineManager               │  setup, run, stop,
//	│        (service, HTTP management API)    │  live reconfiguration
//	└──────────────────────────────────────────┘
//	              ↓ owns
//	┌──────────────────────────────────────────┐
//	│               Components                 │  queues + routines,
//	│      (thread or process execution)       │  one stop event
//	└──────────────────────────────────────────┘
//	              ↓ connected by
//	┌──────────────────────────────────────────┐
//	│     Queues (in process), Redis streams,  │  timestamped
//	│        NATS subjects (across hosts)      │  messages
//	└──────────────────────────────────────────┘
//
// # Topology
//
// A pipeline is declared as a map of components, each listing its queues and
// its routines with their constructor arguments:
//
//	components:
//	  Source:
//	    queues: [frames]
//	    routines:
//	      capture:
//	        routine_type_name: FrameGenerator
//	        queue: frames
//	        fps: 30
//	      publish:
//	        routine_type_name: MessageToRedis
//	        queue: frames
//	        out_key: camera:0
//	  VideoDisplay:
//	    component_type_name: VideoDisplay
//	    queues: []
//	    routines:
//	      read:
//	        routine_type_name: MessageFromRedis
//	        queue: display
//	        in_key: camera:0
//
// A typed component such as VideoDisplay brings its own queues and routines;
// the declaration only adds to them. Built-in routine and component types are registered by package
// componentregistry. The pipert command (cmd/pipert) loads a configuration
// file, optionally sets up and runs a topology, and serves the management API.
//
// # Latency
//
// Every routine that touches a message records a timestamp under its
// component name. A message reaching a terminal component (VideoDisplay or
// VideoWriter by default) is marked as having exited the pipeline, and its
// end-to-end latency is reported to Prometheus.
package pipert
