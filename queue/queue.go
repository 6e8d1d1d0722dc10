// Package queue provides the bounded, lossy, non-blocking mailbox that routines
// use to exchange messages.
package queue

import (
	"log/slog"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/message"
	"github.com/ItamarWilf/PipeRT/metric"
	"github.com/ItamarWilf/PipeRT/pkg/buffer"
)

// DefaultCapacity is used when a queue is created without an explicit capacity.
const DefaultCapacity = 1

// Queue is a named FIFO of messages with a fixed capacity. No operation blocks.
// A Queue is owned by one component and referenced by any number of routines.
type Queue struct {
	name   string
	buf    buffer.Buffer[*message.Message]
	logger *slog.Logger
}

type options struct {
	registry *metric.MetricsRegistry
	owner    string
	onDrop   func(*message.Message)
	logger   *slog.Logger
}

// Option configures a Queue.
type Option func(*options)

// WithMetrics exports the queue counters under owner, typically "<component>.<queue>".
func WithMetrics(registry *metric.MetricsRegistry, owner string) Option {
	return func(o *options) {
		o.registry = registry
		o.owner = owner
	}
}

// WithDropHandler is invoked with every message evicted by Put.
func WithDropHandler(fn func(*message.Message)) Option {
	return func(o *options) {
		o.onDrop = fn
	}
}

// WithLogger sets the logger used to report discarded puts. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a queue. A capacity below 1 falls back to DefaultCapacity.
func New(name string, capacity int, opts ...Option) (*Queue, error) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	bufOpts := []buffer.Option[*message.Message]{
		buffer.WithOverflowPolicy[*message.Message](buffer.DropOldest),
	}
	if o.registry != nil {
		owner := o.owner
		if owner == "" {
			owner = name
		}
		bufOpts = append(bufOpts, buffer.WithMetrics[*message.Message](o.registry, owner))
	}
	if o.onDrop != nil {
		bufOpts = append(bufOpts, buffer.WithDropCallback[*message.Message](o.onDrop))
	}

	buf, err := buffer.NewCircularBuffer(capacity, bufOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Queue", "New", "create buffer for "+name)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{name: name, buf: buf, logger: logger.With("queue", name)}, nil
}

// Name returns the queue name, unique within its component.
func (q *Queue) Name() string { return q.name }

// Put enqueues msg, evicting the oldest message if the queue is full.
// It reports whether a message was evicted. A put on a closed queue discards
// msg and logs the failure.
func (q *Queue) Put(msg *message.Message) bool {
	dropped, err := q.buf.Write(msg)
	if err != nil {
		var id string
		if msg != nil {
			id = msg.ID
		}
		q.logger.Warn("Message discarded", "message_id", id, "error", err)
		return false
	}
	return dropped
}

// PutNowait enqueues msg only if there is room and returns errors.ErrQueueFull otherwise.
func (q *Queue) PutNowait(msg *message.Message) error {
	return q.buf.TryWrite(msg)
}

// Get dequeues the oldest message. ok is false when the queue is empty; callers
// are expected to yield and try again later.
func (q *Queue) Get() (msg *message.Message, ok bool) {
	return q.buf.Read()
}

// GetNowait dequeues the oldest message or returns errors.ErrQueueEmpty.
func (q *Queue) GetNowait() (*message.Message, error) {
	msg, ok := q.buf.Read()
	if !ok {
		return nil, errors.ErrQueueEmpty
	}
	return msg, nil
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return q.buf.Size() }

// Capacity returns the fixed capacity.
func (q *Queue) Capacity() int { return q.buf.Capacity() }

// Empty reports whether the queue holds no messages.
func (q *Queue) Empty() bool { return q.buf.IsEmpty() }

// Full reports whether the next Put will evict.
func (q *Queue) Full() bool { return q.buf.IsFull() }

// Stats returns the queue statistics.
func (q *Queue) Stats() buffer.StatsSummary { return q.buf.Stats().Summary() }

// Close rejects further puts and releases the queue metrics.
func (q *Queue) Close() error { return q.buf.Close() }
