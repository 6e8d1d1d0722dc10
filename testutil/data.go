package testutil

import (
	"sync"
	"time"

	"github.com/ItamarWilf/PipeRT/message"
)

// Frame sizes used across tests.
const (
	SmallFrameWidth  = 4
	SmallFrameHeight = 3
)

// TestFrame returns a gray8 frame whose pixel i holds byte(i).
func TestFrame(width, height int, seq uint64) *message.FramePayload {
	data := make([]byte, width*height)
	for i := range data {
		data[i] = byte(i)
	}
	return &message.FramePayload{
		Width:  width,
		Height: height,
		Format: message.FormatGray8,
		Seq:    seq,
		Data:   data,
	}
}

// TestRGBFrame returns an rgb24 frame filled with one colour.
func TestRGBFrame(width, height int, r, g, b byte) *message.FramePayload {
	data := make([]byte, 0, width*height*3)
	for i := 0; i < width*height; i++ {
		data = append(data, r, g, b)
	}
	return &message.FramePayload{
		Width:  width,
		Height: height,
		Format: message.FormatRGB24,
		Data:   data,
	}
}

// TestPrediction returns a prediction with two boxes for frame seq.
func TestPrediction(seq uint64) *message.PredictionPayload {
	return &message.PredictionPayload{
		FrameSeq: seq,
		Boxes: []message.Box{
			{Label: "person", Score: 0.91, X1: 0, Y1: 0, X2: 2, Y2: 2},
			{Label: "car", Score: 0.55, X1: 1, Y1: 1, X2: 3, Y2: 2},
		},
	}
}

// FixedClock returns a clock that advances by step on every call, starting at start.
func FixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

// TestMessages creates n small frame messages from source using gen.
func TestMessages(gen *message.Generator, source string, n int) []*message.Message {
	msgs := make([]*message.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, gen.New(TestFrame(SmallFrameWidth, SmallFrameHeight, uint64(i)), source))
	}
	return msgs
}
