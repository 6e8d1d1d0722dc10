package latency

import (
	"github.com/ItamarWilf/PipeRT/routine"
)

// Register adds the LatencySink routine type to registry.
func Register(registry *routine.Registry) error {
	return registry.Register(&routine.Registration{
		Name:        TypeName,
		Description: "Consumes messages and reports their latency",
		Parameters: []routine.Parameter{
			{Name: "queue", Type: routine.ParamQueue, Required: true},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			q, err := args.Queue("queue")
			if err != nil {
				return nil, err
			}
			return New(name, q), nil
		},
	})
}
