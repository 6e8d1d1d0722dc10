package generator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ItamarWilf/PipeRT/message"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// TypeName is the routine type registered by Register.
const TypeName = "FrameGenerator"

// Live configuration keys accepted through routine.StateUpdatedConfig.
const (
	ConfigStreamAddress = "stream_address"
	ConfigFPS           = "fps"
)

// Defaults used when the topology leaves a parameter out.
const (
	DefaultStreamAddress = "synthetic://0"
	DefaultFPS           = 30.0
	DefaultWidth         = 640
	DefaultHeight        = 480
)

// Config holds the constructor arguments of a FrameGenerator.
type Config struct {
	StreamAddress string
	FPS           float64
	Width         int
	Height        int
	Format        string
}

// FrameGenerator produces synthetic frames at a fixed rate and puts them into
// its queue, evicting the oldest frame when the queue is full. Every frame is
// stamped with an entry into the owning component.
type FrameGenerator struct {
	*routine.Base

	queue *queue.Queue

	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter
	seq     uint64
}

// New creates a detached FrameGenerator feeding q.
func New(name string, q *queue.Queue, cfg Config) (*FrameGenerator, error) {
	if cfg.StreamAddress == "" {
		cfg.StreamAddress = DefaultStreamAddress
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Format == "" {
		cfg.Format = message.FormatRGB24
	}
	if message.BytesPerPixel(cfg.Format) == 0 {
		return nil, fmt.Errorf("unsupported frame format %q", cfg.Format)
	}

	g := &FrameGenerator{
		Base:  routine.NewBase(name),
		queue: q,
		cfg:   cfg,
	}
	g.AddEventHandler(routine.EventBeforeLogic, func(_ context.Context, _ routine.Routine) {
		g.applyUpdatedConfig()
	}, false)
	return g, nil
}

// Setup implements routine.Routine.
func (g *FrameGenerator) Setup(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiter = rate.NewLimiter(rate.Limit(g.cfg.FPS), 1)
	g.Logger().Info("Starting frame capture", "stream_address", g.cfg.StreamAddress, "fps", g.cfg.FPS)
	return nil
}

// MainLogic emits one frame when the rate limiter allows it.
func (g *FrameGenerator) MainLogic(context.Context) (bool, error) {
	g.mu.Lock()
	if !g.limiter.Allow() {
		g.mu.Unlock()
		return false, nil
	}
	frame := g.nextFrame()
	source := g.cfg.StreamAddress
	g.mu.Unlock()

	msg := g.Generator().New(frame, source)
	msg.RecordEntry(g.ComponentName())
	g.queue.Put(msg)
	return true, nil
}

// Cleanup implements routine.Routine.
func (g *FrameGenerator) Cleanup(context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.Logger().Info("Frame capture stopped", "frames", g.seq)
	return nil
}

// UsesQueue implements routine.Routine.
func (g *FrameGenerator) UsesQueue(name string) bool {
	return g.queue != nil && g.queue.Name() == name
}

// Config returns the current configuration.
func (g *FrameGenerator) Config() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Frames returns how many frames were emitted since construction.
func (g *FrameGenerator) Frames() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seq
}

// nextFrame fills a frame with a pattern derived from the sequence number.
// Called with g.mu held.
func (g *FrameGenerator) nextFrame() *message.FramePayload {
	size := g.cfg.Width * g.cfg.Height * message.BytesPerPixel(g.cfg.Format)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(uint64(i) + g.seq)
	}
	frame := &message.FramePayload{
		Width:  g.cfg.Width,
		Height: g.cfg.Height,
		Format: g.cfg.Format,
		Seq:    g.seq,
		Data:   data,
	}
	g.seq++
	return frame
}

// applyUpdatedConfig switches stream and rate when a live update is pending.
// A switch to the address already in use is ignored.
func (g *FrameGenerator) applyUpdatedConfig() {
	raw, ok := g.TakeState(routine.StateUpdatedConfig)
	if !ok {
		return
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return
	}
	args := routine.NewArgs(values, nil)

	g.mu.Lock()
	defer g.mu.Unlock()

	address := args.String(ConfigStreamAddress)
	if address == "" || address == g.cfg.StreamAddress {
		return
	}
	g.cfg.StreamAddress = address
	if fps := args.Float(ConfigFPS); fps > 0 {
		g.cfg.FPS = fps
	}
	g.limiter = rate.NewLimiter(rate.Limit(g.cfg.FPS), 1)
	g.Logger().Info("Changing source stream address", "stream_address", address, "fps", g.cfg.FPS)
}
