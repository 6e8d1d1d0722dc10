// Package buffer provides a generic, thread-safe circular buffer with
// configurable overflow policies.
//
// The buffer never blocks. When full, Write applies the overflow policy
// (DropOldest evicts the oldest item, DropNewest discards the incoming one)
// while TryWrite refuses the item with errors.ErrQueueFull. Statistics are
// always collected; Prometheus export is enabled with WithMetrics.
//
//	buf, err := buffer.NewCircularBuffer[*message.Message](1,
//	    buffer.WithMetrics[*message.Message](registry, "camera.frames"),
//	)
//	dropped, _ := buf.Write(msg)
//	next, ok := buf.Read()
//
// Package queue builds the pipeline Queue on top of this type.
package buffer
