package message

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItamarWilf/PipeRT/errors"
)

// stepClock advances by one millisecond on every call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestGenerator_IDs(t *testing.T) {
	gen := NewGenerator()

	a := gen.New(RawPayload("a"), "cam0")
	b := gen.New(RawPayload("b"), "cam0")
	c := gen.New(RawPayload("c"), "cam1")

	assert.Equal(t, "cam0_0", a.ID)
	assert.Equal(t, "cam0_1", b.ID)
	assert.Equal(t, "cam1_2", c.ID)
	assert.NotEqual(t, a.TraceID, b.TraceID)
	assert.Equal(t, uint64(3), gen.Count())
}

func TestGenerator_ConcurrentIDsAreUnique(t *testing.T) {
	gen := NewGenerator()
	ids := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m := gen.New(nil, "src")
				_, loaded := ids.LoadOrStore(m.ID, true)
				assert.False(t, loaded, "duplicate id %s", m.ID)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(800), gen.Count())
}

func TestMessage_RecordExitIdempotent(t *testing.T) {
	gen := NewGenerator(WithClock(stepClock()))
	msg := gen.New(RawPayload("x"), "cam0")

	assert.True(t, msg.RecordExit("Detector"))
	first, ok := msg.Timestamp("Detector", SectionExit)
	require.True(t, ok)

	assert.False(t, msg.RecordExit("Detector"))
	second, _ := msg.Timestamp("Detector", SectionExit)
	assert.Equal(t, first, second)
	assert.False(t, msg.ReachedExit, "non-terminal exit must not end the message")
}

func TestMessage_ReachedExitOnlyAtTerminal(t *testing.T) {
	gen := NewGenerator(WithTerminals("Sink"))
	msg := gen.New(RawPayload("x"), "cam0")

	msg.RecordExit("VideoDisplay")
	assert.False(t, msg.ReachedExit)

	msg.RecordExit("Sink")
	assert.True(t, msg.ReachedExit)
}

func TestMessage_DefaultTerminals(t *testing.T) {
	msg := NewGenerator().New(nil, "cam0")
	msg.RecordExit("VideoWriter")
	assert.True(t, msg.ReachedExit)
}

func TestMessage_Latency(t *testing.T) {
	gen := NewGenerator(WithClock(stepClock()))
	msg := gen.New(RawPayload("x"), "cam0")

	_, ok := msg.Latency("Capture")
	assert.False(t, ok)

	msg.RecordEntry("Capture")
	_, ok = msg.Latency("Capture")
	assert.False(t, ok, "latency needs both entry and exit")

	msg.RecordCustom("Capture", "decoded")
	msg.RecordExit("Capture")
	lat, ok := msg.Latency("Capture")
	require.True(t, ok)
	assert.Equal(t, 2*time.Millisecond, lat)
}

func TestMessage_EndToEndLatency(t *testing.T) {
	gen := NewGenerator(WithClock(stepClock()))
	msg := gen.New(RawPayload("x"), "cam0")

	msg.RecordEntry("VideoCapture")
	msg.RecordExit("VideoCapture")
	msg.RecordEntry("VideoDisplay")

	_, ok := msg.EndToEndLatency("VideoCapture", "VideoDisplay")
	assert.False(t, ok, "undefined before the terminal exit")

	msg.RecordExit("VideoDisplay")
	lat, ok := msg.EndToEndLatency("VideoCapture", "VideoDisplay")
	require.True(t, ok)
	assert.Equal(t, 3*time.Millisecond, lat)

	_, ok = msg.EndToEndLatency("Missing", "VideoDisplay")
	assert.False(t, ok)
}

func TestMessage_PipelineLatency(t *testing.T) {
	gen := NewGenerator(WithClock(stepClock()))
	msg := gen.New(RawPayload("x"), "cam0")

	_, ok := msg.PipelineLatency("VideoDisplay")
	assert.False(t, ok)

	msg.RecordEntry("VideoCapture")
	msg.RecordExit("VideoCapture")
	msg.RecordEntry("Relay")
	msg.RecordExit("Relay")
	msg.RecordEntry("VideoDisplay")
	msg.RecordExit("VideoDisplay")

	lat, ok := msg.PipelineLatency("VideoDisplay")
	require.True(t, ok)
	assert.Equal(t, 5*time.Millisecond, lat)

	_, ok = msg.PipelineLatency("Missing")
	assert.False(t, ok)
}

func TestMessage_PayloadHelpers(t *testing.T) {
	gen := NewGenerator()
	msg := gen.New(nil, "cam0")
	assert.True(t, msg.IsEmpty())

	msg.UpdatePayload(&FramePayload{Width: 1, Height: 1, Format: FormatGray8, Data: []byte{1}})
	assert.False(t, msg.IsEmpty())
	assert.Equal(t, "cam0_0", msg.ID)

	assert.True(t, (&PredictionPayload{}).IsEmpty())
	assert.True(t, RawPayload(nil).IsEmpty())
}

func TestMessage_Strings(t *testing.T) {
	gen := NewGenerator(WithClock(stepClock()))
	msg := gen.New(RawPayload("x"), "cam0")
	msg.RecordEntry("B")
	msg.RecordEntry("A")

	assert.Equal(t, "{msg id: cam0_0, payload type: raw, source address: cam0}", msg.String())

	desc := msg.FullDescription()
	assert.True(t, strings.HasPrefix(desc, "msg id: cam0_0, payload type: raw, source address: cam0, history: {A: {entry: "))
	assert.Less(t, strings.Index(desc, "A:"), strings.Index(desc, "B:"))
}

func TestMessage_EncodeDecode(t *testing.T) {
	src := NewGenerator(WithClock(stepClock()))
	msg := src.New(&FramePayload{Width: 2, Height: 1, Format: FormatGray8, Seq: 9, Data: []byte{10, 20}}, "cam0")
	msg.RecordEntry("Capture")
	msg.RecordExit("Capture")

	data, err := msg.Encode()
	require.NoError(t, err)

	dst := NewGenerator(WithTerminals("Capture2"))
	out, err := dst.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, msg.ID, out.ID)
	assert.Equal(t, msg.TraceID, out.TraceID)
	assert.Equal(t, msg.Payload, out.Payload)
	lat, ok := out.Latency("Capture")
	require.True(t, ok)
	assert.Equal(t, time.Millisecond, lat)

	// Terminal names come from the decoding generator.
	out.RecordExit("Capture2")
	assert.True(t, out.ReachedExit)
}

func TestMessage_EncodeDecodePrediction(t *testing.T) {
	gen := NewGenerator()
	msg := gen.New(&PredictionPayload{FrameSeq: 3, Boxes: []Box{{Label: "car", Score: 0.9, X2: 10, Y2: 10}}}, "det")

	data, err := msg.Encode()
	require.NoError(t, err)
	out, err := gen.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Payload, out.Payload)
}

func TestGenerator_DecodeErrors(t *testing.T) {
	gen := NewGenerator()

	_, err := gen.Decode([]byte("not json"))
	assert.True(t, errors.IsInvalid(err))

	_, err = gen.Decode([]byte(`{"source":"x"}`))
	assert.True(t, errors.IsInvalid(err))

	_, err = gen.Decode([]byte(`{"id":"x_1","kind":"hologram","payload":{}}`))
	assert.ErrorIs(t, err, errors.ErrUnknownType)
}

func TestFramePayload_Validate(t *testing.T) {
	ok := &FramePayload{Width: 2, Height: 2, Format: FormatRGB24, Data: make([]byte, 12)}
	assert.NoError(t, ok.Validate())

	short := &FramePayload{Width: 2, Height: 2, Format: FormatRGB24, Data: make([]byte, 4)}
	assert.True(t, errors.IsInvalid(short.Validate()))

	jpeg := &FramePayload{Width: 2, Height: 2, Format: FormatJPEG, Data: []byte{0xff}}
	assert.NoError(t, jpeg.Validate())

	assert.Error(t, (&FramePayload{Format: FormatJPEG}).Validate())
	assert.Error(t, (&PredictionPayload{Boxes: []Box{{X1: 5, X2: 1}}}).Validate())
}

type customPayload struct {
	Note string `json:"note"`
}

func (c *customPayload) Kind() Kind { return "custom-note" }
func (c *customPayload) IsEmpty() bool { return c.Note == "" }
func (c *customPayload) Validate() error { return nil }

func TestRegisterPayload(t *testing.T) {
	require.NoError(t, RegisterPayload("custom-note", func() Payload { return &customPayload{} }))
	assert.Error(t, RegisterPayload("custom-note", func() Payload { return &customPayload{} }))
	assert.Error(t, RegisterPayload(KindFrame, func() Payload { return &FramePayload{} }))

	gen := NewGenerator()
	data, err := gen.New(&customPayload{Note: "hi"}, "x").Encode()
	require.NoError(t, err)
	out, err := gen.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, &customPayload{Note: "hi"}, out.Payload)
}
