package redis

import (
	"github.com/ItamarWilf/PipeRT/routine"
)

// Register adds the MessageFromRedis routine type to registry. defaultURL is
// used when a topology omits url; empty selects DefaultURL.
func Register(registry *routine.Registry, defaultURL string) error {
	if defaultURL == "" {
		defaultURL = DefaultURL
	}
	return registry.Register(&routine.Registration{
		Name:        TypeName,
		Description: "Reads messages from a Redis stream",
		Parameters: []routine.Parameter{
			{Name: "in_key", Type: routine.ParamString, Required: true, Description: "Stream key"},
			{Name: "url", Type: routine.ParamString, Default: defaultURL},
			{Name: "queue", Type: routine.ParamQueue, Required: true},
			{Name: "most_recent", Type: routine.ParamBool, Default: false, Description: "Read only the newest entry"},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			q, err := args.Queue("queue")
			if err != nil {
				return nil, err
			}
			return New(name, q, Config{
				InKey:      args.String("in_key"),
				URL:        args.String("url"),
				MostRecent: args.Bool("most_recent"),
			})
		},
	})
}
