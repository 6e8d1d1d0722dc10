package message

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ItamarWilf/PipeRT/errors"
)

// Kind identifies a payload type on the wire.
type Kind string

// Well-known payload kinds.
const (
	KindFrame      Kind = "frame"
	KindPrediction Kind = "prediction"
	KindRaw        Kind = "raw"
)

// Payload is the data carried by a message.
type Payload interface {
	// Kind returns the wire identifier used to recreate the payload on decode.
	Kind() Kind

	// IsEmpty reports whether the payload carries no usable data.
	IsEmpty() bool

	// Validate checks the payload for structural correctness.
	Validate() error
}

// Pixel formats understood by FramePayload.
const (
	FormatGray8 = "gray8"
	FormatRGB24 = "rgb24"
	FormatJPEG  = "jpeg"
)

// BytesPerPixel returns the pixel width of a raw format, or 0 for encoded formats.
func BytesPerPixel(format string) int {
	switch format {
	case FormatGray8:
		return 1
	case FormatRGB24:
		return 3
	default:
		return 0
	}
}

// FramePayload is a single video frame.
type FramePayload struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Seq    uint64 `json:"seq"`
	Data   []byte `json:"data"`
}

func (p *FramePayload) Kind() Kind { return KindFrame }

func (p *FramePayload) IsEmpty() bool { return p == nil || len(p.Data) == 0 }

// Validate checks dimensions and, for raw formats, that the data length matches.
func (p *FramePayload) Validate() error {
	if p == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "FramePayload", "Validate", "nil frame")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "FramePayload", "Validate",
			fmt.Sprintf("bad dimensions %dx%d", p.Width, p.Height))
	}
	if bpp := BytesPerPixel(p.Format); bpp > 0 && len(p.Data) != p.Width*p.Height*bpp {
		return errors.WrapInvalid(errors.ErrInvalidData, "FramePayload", "Validate",
			fmt.Sprintf("%s frame %dx%d needs %d bytes, has %d", p.Format, p.Width, p.Height,
				p.Width*p.Height*bpp, len(p.Data)))
	}
	return nil
}

// Box is a single detection.
type Box struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
}

// PredictionPayload carries detections for the frame with sequence FrameSeq.
type PredictionPayload struct {
	FrameSeq uint64 `json:"frame_seq"`
	Boxes    []Box  `json:"boxes"`
}

func (p *PredictionPayload) Kind() Kind { return KindPrediction }

func (p *PredictionPayload) IsEmpty() bool { return p == nil || len(p.Boxes) == 0 }

func (p *PredictionPayload) Validate() error {
	if p == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "PredictionPayload", "Validate", "nil prediction")
	}
	for i, b := range p.Boxes {
		if b.X2 < b.X1 || b.Y2 < b.Y1 {
			return errors.WrapInvalid(errors.ErrInvalidData, "PredictionPayload", "Validate",
				fmt.Sprintf("box %d has inverted corners", i))
		}
	}
	return nil
}

// RawPayload is an opaque byte payload.
type RawPayload []byte

func (p RawPayload) Kind() Kind { return KindRaw }

func (p RawPayload) IsEmpty() bool { return len(p) == 0 }

func (p RawPayload) Validate() error { return nil }

// PayloadFactory creates an empty payload of one kind for decoding.
type PayloadFactory func() Payload

var (
	payloadMu        sync.RWMutex
	payloadFactories = map[Kind]PayloadFactory{
		KindFrame:      func() Payload { return &FramePayload{} },
		KindPrediction: func() Payload { return &PredictionPayload{} },
	}
)

// RegisterPayload makes a custom payload kind decodable. Registering a kind
// twice is an error.
func RegisterPayload(kind Kind, factory PayloadFactory) error {
	payloadMu.Lock()
	defer payloadMu.Unlock()

	if kind == KindRaw {
		return errors.WrapInvalid(errors.ErrDuplicateName, "message", "RegisterPayload", string(kind))
	}
	if _, exists := payloadFactories[kind]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateName, "message", "RegisterPayload", string(kind))
	}
	payloadFactories[kind] = factory
	return nil
}

func decodePayload(kind Kind, data json.RawMessage) (Payload, error) {
	if kind == "" || len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if kind == KindRaw {
		var raw []byte
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return RawPayload(raw), nil
	}

	payloadMu.RLock()
	factory, ok := payloadFactories[kind]
	payloadMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: payload kind %q", errors.ErrUnknownType, kind)
	}

	p := factory()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}
