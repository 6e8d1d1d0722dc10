// Package message defines the Message exchanged between routines and its payloads.
//
// A Message carries a Payload, a source identifier, a unique id and a history
// of per-component timestamps. Messages are created through a Generator, which
// owns the id counter and knows which component names terminate the pipeline:
//
//	gen := message.NewGenerator(message.WithTerminals("VideoDisplay"))
//	msg := gen.New(&message.FramePayload{Width: 640, Height: 480, Format: message.FormatJPEG, Data: jpg}, "cam0")
//	msg.RecordEntry("Capture")
//	msg.RecordExit("Capture")
//
// RecordExit is idempotent per component and sets ReachedExit only for terminal
// components. Encode and Generator.Decode move messages across process
// boundaries as JSON; payload kinds other than the built-ins are added with
// RegisterPayload.
package message
