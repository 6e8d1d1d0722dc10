package relay

import (
	"github.com/ItamarWilf/PipeRT/routine"
)

// Register adds the Relay routine type to registry.
func Register(registry *routine.Registry) error {
	return registry.Register(&routine.Registration{
		Name:        TypeName,
		Description: "Moves messages between two queues, optionally flipping or inverting frames",
		Parameters: []routine.Parameter{
			{Name: "in_queue", Type: routine.ParamQueue, Required: true},
			{Name: "out_queue", Type: routine.ParamQueue, Required: true},
			{Name: ConfigFlip, Type: routine.ParamBool, Default: false},
			{Name: ConfigNegative, Type: routine.ParamBool, Default: false},
			{Name: "section", Type: routine.ParamString, Default: DefaultSection, Description: "History section stamped on every message"},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			in, err := args.Queue("in_queue")
			if err != nil {
				return nil, err
			}
			out, err := args.Queue("out_queue")
			if err != nil {
				return nil, err
			}
			return New(name, in, out, Options{
				Flip:     args.Bool(ConfigFlip),
				Negative: args.Bool(ConfigNegative),
				Section:  args.String("section"),
			}), nil
		},
	})
}
