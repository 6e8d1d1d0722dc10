package buffer

// Buffer is a generic fixed-capacity FIFO. Implementations are safe for
// concurrent use by any number of producers and consumers and never block.
type Buffer[T any] interface {
	// Write adds an item. When the buffer is full the overflow policy decides
	// which item is lost. Write reports whether an item was dropped.
	Write(item T) (dropped bool, err error)

	// TryWrite adds an item only if there is room. A full buffer yields an
	// error matching errors.ErrQueueFull and leaves the contents untouched.
	TryWrite(item T) error

	// Read removes and returns the oldest item. ok is false when the buffer is empty.
	Read() (item T, ok bool)

	// ReadBatch removes up to max items, oldest first.
	ReadBatch(max int) []T

	// Peek returns the oldest item without removing it.
	Peek() (item T, ok bool)

	Size() int
	Capacity() int
	IsFull() bool
	IsEmpty() bool

	// Clear removes all items, invoking the drop callback for each.
	Clear()

	// Stats returns the always-on statistics.
	Stats() *Statistics

	// Close rejects further writes and unregisters metrics.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room for the new one.
	DropOldest OverflowPolicy = iota

	// DropNewest discards the incoming item.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called with every item lost to the overflow policy or Clear.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a circular buffer. Capacity below 1 is raised to 1.
// An error is returned only when metrics were requested and registration failed.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
