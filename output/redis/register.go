package redis

import (
	"github.com/ItamarWilf/PipeRT/routine"
)

// Register adds the MessageToRedis routine type to registry. defaultURL is
// used when a topology omits url; empty selects DefaultURL.
func Register(registry *routine.Registry, defaultURL string) error {
	if defaultURL == "" {
		defaultURL = DefaultURL
	}
	return registry.Register(&routine.Registration{
		Name:        TypeName,
		Description: "Appends messages to a capped Redis stream",
		Parameters: []routine.Parameter{
			{Name: "out_key", Type: routine.ParamString, Required: true, Description: "Stream key"},
			{Name: "url", Type: routine.ParamString, Default: defaultURL},
			{Name: "queue", Type: routine.ParamQueue, Required: true},
			{Name: "maxlen", Type: routine.ParamInt, Default: DefaultMaxLen, Description: "Stream length cap"},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			q, err := args.Queue("queue")
			if err != nil {
				return nil, err
			}
			return New(name, q, Config{
				OutKey: args.String("out_key"),
				URL:    args.String("url"),
				MaxLen: int64(args.Int("maxlen")),
			})
		},
	})
}
