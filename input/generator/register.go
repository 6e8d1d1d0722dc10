package generator

import (
	"github.com/ItamarWilf/PipeRT/routine"
)

// Register adds the FrameGenerator routine type to registry.
func Register(registry *routine.Registry) error {
	return registry.Register(&routine.Registration{
		Name:        TypeName,
		Description: "Synthetic video source emitting frames at a fixed rate",
		Parameters: []routine.Parameter{
			{Name: "queue", Type: routine.ParamQueue, Required: true, Description: "Queue the frames are put into"},
			{Name: ConfigStreamAddress, Type: routine.ParamString, Default: DefaultStreamAddress, Description: "Source address recorded on every message"},
			{Name: ConfigFPS, Type: routine.ParamFloat, Default: DefaultFPS, Description: "Frames per second"},
			{Name: "width", Type: routine.ParamInt, Default: DefaultWidth},
			{Name: "height", Type: routine.ParamInt, Default: DefaultHeight},
			{Name: "format", Type: routine.ParamString, Default: "rgb24", Description: "gray8 or rgb24"},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			q, err := args.Queue("queue")
			if err != nil {
				return nil, err
			}
			return New(name, q, Config{
				StreamAddress: args.String(ConfigStreamAddress),
				FPS:           args.Float(ConfigFPS),
				Width:         args.Int("width"),
				Height:        args.Int("height"),
				Format:        args.String("format"),
			})
		},
	})
}
