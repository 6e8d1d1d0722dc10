package file

import (
	"github.com/ItamarWilf/PipeRT/routine"
)

// Register adds the FileWriter routine type to registry.
func Register(registry *routine.Registry) error {
	def := DefaultConfig()
	return registry.Register(&routine.Registration{
		Name:        TypeName,
		Description: "Writes messages to a file and records their exit",
		Parameters: []routine.Parameter{
			{Name: "queue", Type: routine.ParamQueue, Required: true},
			{Name: "directory", Type: routine.ParamString, Default: def.Directory, Description: "Output directory"},
			{Name: "file_prefix", Type: routine.ParamString, Default: def.FilePrefix, Description: "File name without extension"},
			{Name: "format", Type: routine.ParamString, Default: def.Format, Description: "json, jsonl or raw"},
			{Name: "append", Type: routine.ParamBool, Default: def.Append, Description: "Append to an existing file"},
			{Name: "buffer_size", Type: routine.ParamInt, Default: def.BufferSize, Description: "Records per flush"},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			q, err := args.Queue("queue")
			if err != nil {
				return nil, err
			}
			return New(name, q, Config{
				Directory:  args.String("directory"),
				FilePrefix: args.String("file_prefix"),
				Format:     args.String("format"),
				Append:     args.Bool("append"),
				BufferSize: args.Int("buffer_size"),
			})
		},
	})
}
