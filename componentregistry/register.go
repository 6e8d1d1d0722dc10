// Package componentregistry registers every built-in routine type and
// component type of PipeRT.
package componentregistry

import (
	"errors"
	"fmt"

	"github.com/ItamarWilf/PipeRT/component"
	pkgerrors "github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/input/generator"
	natsinput "github.com/ItamarWilf/PipeRT/input/nats"
	redisinput "github.com/ItamarWilf/PipeRT/input/redis"
	"github.com/ItamarWilf/PipeRT/natsclient"
	"github.com/ItamarWilf/PipeRT/output/file"
	"github.com/ItamarWilf/PipeRT/output/latency"
	natsoutput "github.com/ItamarWilf/PipeRT/output/nats"
	redisoutput "github.com/ItamarWilf/PipeRT/output/redis"
	"github.com/ItamarWilf/PipeRT/output/websocket"
	"github.com/ItamarWilf/PipeRT/processor/relay"
	"github.com/ItamarWilf/PipeRT/routine"
)

// Terminal component types.
const (
	VideoDisplayType = "VideoDisplay"
	VideoWriterType  = "VideoWriter"
)

// VideoDisplay layout.
const (
	DisplayQueue   = "display"
	DisplayRoutine = "display"
)

// VideoWriter layout.
const (
	WriterQueue   = "writer"
	WriterRoutine = "write"
)

// Options carry the deployment defaults handed to routine types.
type Options struct {
	NATSURL        string            // default url of the NATS routines
	RedisURL       string            // default url of the Redis routines
	NATSDialer     natsclient.Dialer // nil selects natsclient.DefaultDialer
	DisplayAddress string            // viewer endpoint of VideoDisplay components
	OutputDir      string            // directory of VideoWriter files
}

// Register adds every built-in routine type to routines and every built-in
// component type to components.
//
// Routine types:
//   - FrameGenerator (synthetic video source)
//   - MessageFromRedis, MessageToRedis (Redis streams)
//   - MessageFromNATS, MessageToNATS (NATS subjects)
//   - Relay (queue to queue, frame transforms)
//   - Display (websocket viewers)
//   - LatencySink (latency reporting)
//   - FileWriter (messages persisted to disk)
//
// Component types:
//   - VideoDisplay (a display queue drained by a Display routine)
//   - VideoWriter (a writer queue drained by a FileWriter routine)
func Register(components *component.Registry, routines *routine.Registry, opts Options) error {
	if err := RegisterRoutines(routines, opts); err != nil {
		return err
	}
	return RegisterComponents(components, opts)
}

// RegisterRoutines adds the built-in routine types to registry.
func RegisterRoutines(registry *routine.Registry, opts Options) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(errors.New("routine registry cannot be nil"),
			"ComponentRegistry", "RegisterRoutines", "registry validation")
	}

	registrations := []struct {
		name     string
		register func() error
	}{
		{generator.TypeName, func() error { return generator.Register(registry) }},
		{redisinput.TypeName, func() error { return redisinput.Register(registry, opts.RedisURL) }},
		{redisoutput.TypeName, func() error { return redisoutput.Register(registry, opts.RedisURL) }},
		{natsinput.TypeName, func() error { return natsinput.Register(registry, opts.NATSURL, opts.NATSDialer) }},
		{natsoutput.TypeName, func() error { return natsoutput.Register(registry, opts.NATSURL, opts.NATSDialer) }},
		{relay.TypeName, func() error { return relay.Register(registry) }},
		{websocket.TypeName, func() error { return websocket.Register(registry) }},
		{latency.TypeName, func() error { return latency.Register(registry) }},
		{file.TypeName, func() error { return file.Register(registry) }},
	}
	for _, r := range registrations {
		if err := r.register(); err != nil {
			return pkgerrors.WrapInvalid(err, "ComponentRegistry", "RegisterRoutines",
				fmt.Sprintf("%s routine registration", r.name))
		}
	}
	return nil
}

// RegisterComponents adds the built-in component types to registry.
func RegisterComponents(registry *component.Registry, opts Options) error {
	if registry == nil {
		return pkgerrors.WrapFatal(errors.New("component registry cannot be nil"),
			"ComponentRegistry", "RegisterComponents", "registry validation")
	}

	address := opts.DisplayAddress
	if address == "" {
		address = websocket.DefaultAddress
	}

	err := registry.RegisterFactory(&component.Registration{
		Name:        VideoDisplayType,
		Description: "Terminal component showing frames to websocket viewers",
		Factory: func(name string, deps component.Dependencies, useSharedMemory bool) (*component.Component, error) {
			return newVideoDisplay(name, deps, useSharedMemory, address)
		},
	})
	if err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "RegisterComponents",
			"VideoDisplay component registration")
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = file.DefaultDirectory
	}

	err = registry.RegisterFactory(&component.Registration{
		Name:        VideoWriterType,
		Description: "Terminal component persisting messages to a file named after the component",
		Factory: func(name string, deps component.Dependencies, useSharedMemory bool) (*component.Component, error) {
			return newVideoWriter(name, deps, useSharedMemory, dir)
		},
	})
	if err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "RegisterComponents",
			"VideoWriter component registration")
	}
	return nil
}

func newVideoDisplay(name string, deps component.Dependencies, useSharedMemory bool, address string) (*component.Component, error) {
	c := component.New(name, deps, component.WithSharedMemory(useSharedMemory))
	if res := c.CreateQueue(DisplayQueue); !res.Succeeded {
		return nil, fmt.Errorf("create %s queue: %s", DisplayQueue, res.Message)
	}
	q, _ := c.Queue(DisplayQueue)
	if res := c.AddRoutineInstance(websocket.New(DisplayRoutine, q, address, "")); !res.Succeeded {
		return nil, fmt.Errorf("add %s routine: %s", DisplayRoutine, res.Message)
	}
	return c, nil
}

func newVideoWriter(name string, deps component.Dependencies, useSharedMemory bool, dir string) (*component.Component, error) {
	c := component.New(name, deps, component.WithSharedMemory(useSharedMemory))
	if res := c.CreateQueue(WriterQueue); !res.Succeeded {
		return nil, fmt.Errorf("create %s queue: %s", WriterQueue, res.Message)
	}
	q, _ := c.Queue(WriterQueue)
	w, err := file.New(WriterRoutine, q, file.Config{Directory: dir, FilePrefix: name})
	if err != nil {
		return nil, err
	}
	if res := c.AddRoutineInstance(w); !res.Succeeded {
		return nil, fmt.Errorf("add %s routine: %s", WriterRoutine, res.Message)
	}
	return c, nil
}
