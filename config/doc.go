// Package config loads the PipeRT configuration from YAML files and
// environment variables.
//
// A Loader starts from Default, decodes each file layer on top of it so later
// layers only override the keys they set, then applies PIPERT_* environment
// overrides:
//
//	loader := config.NewLoader()
//	loader.AddLayer("pipert.yaml")
//	loader.AddLayer("pipert.production.yaml")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Example file:
//
//	log:
//	  level: debug
//	  format: text
//	http:
//	  addr: ":8080"
//	pipeline:
//	  queue_capacity: 4
//	  auto_run: true
//	topology:
//	  components:
//	    camera:
//	      queues: [frames]
//	      routines:
//	        capture: {routine_type_name: FrameGenerator, queue: frames, fps: 25}
//
// The topology may also live in its own file named by pipeline.topology_file.
// Validate reports every invalid setting as an Invalid-class error.
package config
