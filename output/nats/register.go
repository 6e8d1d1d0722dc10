package nats

import (
	"github.com/ItamarWilf/PipeRT/natsclient"
	"github.com/ItamarWilf/PipeRT/routine"
)

// Register adds the MessageToNATS routine type to registry. defaultURL is
// used when a topology omits url; dial may be nil.
func Register(registry *routine.Registry, defaultURL string, dial natsclient.Dialer) error {
	if defaultURL == "" {
		defaultURL = DefaultURL
	}
	return registry.Register(&routine.Registration{
		Name:        TypeName,
		Description: "Publishes messages on a NATS subject",
		Parameters: []routine.Parameter{
			{Name: "subject", Type: routine.ParamString, Required: true},
			{Name: "url", Type: routine.ParamString, Default: defaultURL},
			{Name: "queue", Type: routine.ParamQueue, Required: true},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			q, err := args.Queue("queue")
			if err != nil {
				return nil, err
			}
			return New(name, q, args.String("subject"), args.String("url"), dial)
		},
	})
}
