package websocket

import (
	"github.com/ItamarWilf/PipeRT/routine"
)

// Register adds the Display routine type to registry.
func Register(registry *routine.Registry) error {
	return registry.Register(&routine.Registration{
		Name:        TypeName,
		Description: "Terminal display broadcasting messages to websocket viewers",
		Parameters: []routine.Parameter{
			{Name: "queue", Type: routine.ParamQueue, Required: true},
			{Name: "address", Type: routine.ParamString, Default: DefaultAddress, Description: "Listen address of the viewer endpoint"},
			{Name: "path", Type: routine.ParamString, Default: DefaultPath},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			q, err := args.Queue("queue")
			if err != nil {
				return nil, err
			}
			return New(name, q, args.String("address"), args.String("path")), nil
		},
	})
}
