package relay

import (
	"context"
	"sync"

	"github.com/ItamarWilf/PipeRT/message"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// TypeName is the routine type registered by Register.
const TypeName = "Relay"

// Live configuration keys accepted through routine.StateUpdatedConfig.
const (
	ConfigFlip     = "flip"
	ConfigNegative = "negative"
)

// DefaultSection is the history section stamped on every relayed message.
const DefaultSection = "relayed"

// Options select the frame transforms applied on the way through.
type Options struct {
	Flip     bool   // mirror raw frames horizontally
	Negative bool   // invert raw frame bytes
	Section  string // history section, DefaultSection when empty
}

// Relay moves messages from one queue to another, stamping a custom history
// section and optionally transforming raw frames. Messages that are not raw
// frames pass through untouched.
type Relay struct {
	*routine.Base

	in  *queue.Queue
	out *queue.Queue

	mu   sync.RWMutex
	opts Options
}

// New creates a detached Relay from in to out.
func New(name string, in, out *queue.Queue, opts Options) *Relay {
	if opts.Section == "" {
		opts.Section = DefaultSection
	}
	r := &Relay{
		Base: routine.NewBase(name),
		in:   in,
		out:  out,
		opts: opts,
	}
	r.AddEventHandler(routine.EventBeforeLogic, func(_ context.Context, _ routine.Routine) {
		r.applyUpdatedConfig()
	}, false)
	return r
}

// Setup implements routine.Routine.
func (r *Relay) Setup(context.Context) error { return nil }

// MainLogic relays one message. It reports no work when the input is empty.
func (r *Relay) MainLogic(context.Context) (bool, error) {
	msg, ok := r.in.Get()
	if !ok {
		return false, nil
	}

	opts := r.Options()
	if frame, ok := msg.Payload.(*message.FramePayload); ok && (opts.Flip || opts.Negative) {
		msg.UpdatePayload(transform(frame, opts))
	}
	msg.RecordCustom(r.ComponentName(), opts.Section)
	r.out.Put(msg)
	return true, nil
}

// Cleanup implements routine.Routine.
func (r *Relay) Cleanup(context.Context) error { return nil }

// UsesQueue implements routine.Routine.
func (r *Relay) UsesQueue(name string) bool {
	return r.in.Name() == name || r.out.Name() == name
}

// Options returns the transforms currently applied.
func (r *Relay) Options() Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

func (r *Relay) applyUpdatedConfig() {
	raw, ok := r.TakeState(routine.StateUpdatedConfig)
	if !ok {
		return
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return
	}
	args := routine.NewArgs(values, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if args.Has(ConfigFlip) {
		r.opts.Flip = args.Bool(ConfigFlip)
	}
	if args.Has(ConfigNegative) {
		r.opts.Negative = args.Bool(ConfigNegative)
	}
	r.Logger().Debug("Relay transforms updated", "flip", r.opts.Flip, "negative", r.opts.Negative)
}

// transform returns a transformed copy of frame. Encoded frames are returned as is.
func transform(frame *message.FramePayload, opts Options) *message.FramePayload {
	bpp := message.BytesPerPixel(frame.Format)
	if bpp == 0 || frame.Validate() != nil {
		return frame
	}

	out := *frame
	out.Data = make([]byte, len(frame.Data))
	copy(out.Data, frame.Data)

	if opts.Flip {
		rowLen := frame.Width * bpp
		for y := 0; y < frame.Height; y++ {
			row := out.Data[y*rowLen : (y+1)*rowLen]
			for l, rr := 0, frame.Width-1; l < rr; l, rr = l+1, rr-1 {
				for k := 0; k < bpp; k++ {
					row[l*bpp+k], row[rr*bpp+k] = row[rr*bpp+k], row[l*bpp+k]
				}
			}
		}
	}
	if opts.Negative {
		for i, b := range out.Data {
			out.Data[i] = 255 - b
		}
	}
	return &out
}
