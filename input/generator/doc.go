// Package generator provides FrameGenerator, a video source routine that
// emits synthetic frames at a fixed rate.
//
// The routine accepts live updates through Component.UpdateRoutineConfig:
// {"stream_address": "...", "fps": 25} switches the source address and rate
// before the next frame.
package generator
