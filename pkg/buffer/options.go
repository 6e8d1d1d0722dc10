package buffer

import (
	"github.com/ItamarWilf/PipeRT/metric"
)

// Option configures a buffer.
type Option[T any] func(*bufferOptions[T])

type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]

	metricsReg   *metric.MetricsRegistry
	metricsOwner string
}

// WithOverflowPolicy sets the overflow behavior. Defaults to DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.overflowPolicy = policy
	}
}

// WithMetrics exports the buffer statistics as Prometheus metrics labelled
// with owner. A nil registry or empty owner disables the option.
func WithMetrics[T any](registry *metric.MetricsRegistry, owner string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && owner != "" {
			opts.metricsReg = registry
			opts.metricsOwner = owner
		}
	}
}

// WithDropCallback sets a callback invoked for each dropped item.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		overflowPolicy: DropOldest,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
