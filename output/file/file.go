package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/message"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// TypeName is the routine type registered by Register.
const TypeName = "FileWriter"

// Output formats.
const (
	FormatJSONL = "jsonl" // one encoded message per line
	FormatJSON  = "json"  // indented encoded messages
	FormatRaw   = "raw"   // frame bytes only, other payloads are skipped
)

// Defaults applied by DefaultConfig.
const (
	DefaultDirectory  = "/tmp/pipert"
	DefaultFilePrefix = "output"
	DefaultBufferSize = 100
)

// Config configures a Writer.
type Config struct {
	Directory  string
	FilePrefix string
	Format     string
	Append     bool
	BufferSize int
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		Directory:  DefaultDirectory,
		FilePrefix: DefaultFilePrefix,
		Format:     FormatJSONL,
		Append:     true,
		BufferSize: DefaultBufferSize,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "directory is required")
	}

	validFormats := map[string]bool{FormatJSON: true, FormatJSONL: true, FormatRaw: true}
	if !validFormats[c.Format] {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"format must be one of: json, jsonl, raw")
	}

	if c.BufferSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"buffer_size cannot be negative")
	}

	return nil
}

// Path returns the file the configuration writes to.
func (c *Config) Path() string {
	return filepath.Join(c.Directory, fmt.Sprintf("%s.%s", c.FilePrefix, c.Format))
}

// Writer records the exit of every message it drains and appends it to a
// file. Writes are batched; a batch is flushed once BufferSize records are
// pending and on Cleanup.
type Writer struct {
	*routine.Base

	queue  *queue.Queue
	config Config

	fileMu sync.Mutex
	file   *os.File

	bufferMu sync.Mutex
	buffer   [][]byte

	statsMu sync.Mutex
	stats   Stats
}

// Stats counts what a Writer did since its last Setup.
type Stats struct {
	MessagesWritten int64 `json:"messages_written"`
	BytesWritten    int64 `json:"bytes_written"`
	Skipped         int64 `json:"skipped"`
	Errors          int64 `json:"errors"`
}

// New creates a detached Writer draining q. Zero fields of cfg take their
// defaults.
func New(name string, q *queue.Queue, cfg Config) (*Writer, error) {
	def := DefaultConfig()
	if cfg.Directory == "" {
		cfg.Directory = def.Directory
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = def.FilePrefix
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Writer{Base: routine.NewBase(name), queue: q, config: cfg}, nil
}

// Config returns the effective configuration.
func (w *Writer) Config() Config { return w.config }

// Setup creates the output directory and opens the file.
func (w *Writer) Setup(context.Context) error {
	if err := os.MkdirAll(w.config.Directory, 0o755); err != nil {
		return errors.WrapFatal(err, "Writer", "Setup", "create output directory")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if w.config.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(w.config.Path(), flags, 0o644)
	if err != nil {
		return errors.WrapFatal(err, "Writer", "Setup", "open output file")
	}

	w.fileMu.Lock()
	w.file = f
	w.fileMu.Unlock()

	w.bufferMu.Lock()
	w.buffer = make([][]byte, 0, w.config.BufferSize)
	w.bufferMu.Unlock()

	w.statsMu.Lock()
	w.stats = Stats{}
	w.statsMu.Unlock()

	w.Logger().Debug("File output opened",
		"path", w.config.Path(),
		"format", w.config.Format,
		"append", w.config.Append,
		"buffer_size", w.config.BufferSize)
	return nil
}

// MainLogic writes one message. It reports no work when the queue is empty.
func (w *Writer) MainLogic(context.Context) (bool, error) {
	msg, ok := w.queue.Get()
	if !ok {
		return false, nil
	}

	component := w.ComponentName()
	msg.RecordExit(component)
	if latency, ok := msg.PipelineLatency(component); ok {
		w.Collector().CollectLatency(latency, component)
	}

	record, err := w.render(msg)
	if err != nil {
		w.count(func(s *Stats) { s.Errors++ })
		return true, errors.WrapInvalid(err, "Writer", "MainLogic", "encode message")
	}
	if record == nil {
		w.count(func(s *Stats) { s.Skipped++ })
		return true, nil
	}

	w.bufferMu.Lock()
	w.buffer = append(w.buffer, record)
	shouldFlush := len(w.buffer) >= w.config.BufferSize
	w.bufferMu.Unlock()

	if shouldFlush {
		if err := w.Flush(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Cleanup flushes pending records and closes the file.
func (w *Writer) Cleanup(context.Context) error {
	flushErr := w.Flush()

	w.fileMu.Lock()
	defer w.fileMu.Unlock()
	if w.file == nil {
		return flushErr
	}
	closeErr := w.file.Close()
	w.file = nil

	stats := w.Stats()
	w.Logger().Info("File output closed",
		"path", w.config.Path(),
		"messages_written", stats.MessagesWritten,
		"bytes_written", stats.BytesWritten,
		"skipped", stats.Skipped,
		"errors", stats.Errors)

	if closeErr != nil {
		return errors.Join(flushErr, errors.WrapTransient(closeErr, "Writer", "Cleanup", "close output file"))
	}
	return flushErr
}

// UsesQueue implements routine.Routine.
func (w *Writer) UsesQueue(name string) bool {
	return w.queue != nil && w.queue.Name() == name
}

// Stats returns the counters since the last Setup.
func (w *Writer) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

// Flush writes the pending records to the file.
func (w *Writer) Flush() error {
	w.bufferMu.Lock()
	records := w.buffer
	w.buffer = make([][]byte, 0, w.config.BufferSize)
	w.bufferMu.Unlock()

	if len(records) == 0 {
		return nil
	}

	w.fileMu.Lock()
	defer w.fileMu.Unlock()

	if w.file == nil {
		w.count(func(s *Stats) { s.Errors += int64(len(records)) })
		return errors.WrapFatal(errors.ErrNotStarted, "Writer", "Flush",
			fmt.Sprintf("file closed, %d records lost", len(records)))
	}

	for _, record := range records {
		n, err := w.file.Write(record)
		if err != nil {
			w.count(func(s *Stats) { s.Errors++ })
			return errors.WrapTransient(err, "Writer", "Flush", "write record")
		}
		w.count(func(s *Stats) {
			s.MessagesWritten++
			s.BytesWritten += int64(n)
		})
	}
	return nil
}

// render returns the bytes written for msg, or nil when the format has
// nothing to write for its payload.
func (w *Writer) render(msg *message.Message) ([]byte, error) {
	if w.config.Format == FormatRaw {
		frame, ok := msg.Payload.(*message.FramePayload)
		if !ok || frame.IsEmpty() {
			return nil, nil
		}
		return frame.Data, nil
	}

	data, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	if w.config.Format == FormatJSON {
		var obj any
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		if data, err = json.MarshalIndent(obj, "", "  "); err != nil {
			return nil, err
		}
	}
	return append(data, '\n'), nil
}

func (w *Writer) count(update func(*Stats)) {
	w.statsMu.Lock()
	update(&w.stats)
	w.statsMu.Unlock()
}
