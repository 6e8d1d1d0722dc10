package message

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ItamarWilf/PipeRT/errors"
)

// DefaultTerminals are the component names that mark the end of a pipeline.
var DefaultTerminals = []string{"VideoDisplay", "VideoWriter"}

// Generator creates messages. It owns the id counter and the set of terminal
// component names, and is shared by every routine of a pipeline.
type Generator struct {
	counter   atomic.Uint64
	terminals map[string]struct{}
	clock     func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTerminals replaces the terminal component names.
func WithTerminals(names ...string) GeneratorOption {
	return func(g *Generator) {
		g.terminals = make(map[string]struct{}, len(names))
		for _, n := range names {
			g.terminals[n] = struct{}{}
		}
	}
}

// WithClock overrides the time source used for history timestamps.
func WithClock(clock func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.clock = clock
	}
}

// NewGenerator creates a generator with DefaultTerminals.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{clock: time.Now}
	WithTerminals(DefaultTerminals...)(g)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = NewGenerator()

// Default returns the process-wide generator used when none is injected.
func Default() *Generator { return defaultGenerator }

// New creates a message with the next id for source.
func (g *Generator) New(payload Payload, source string) *Message {
	n := g.counter.Add(1) - 1
	return &Message{
		ID:        fmt.Sprintf("%s_%d", source, n),
		TraceID:   uuid.NewString(),
		Source:    source,
		CreatedAt: g.now(),
		Payload:   payload,
		history:   make(History),
		gen:       g,
	}
}

// IsTerminal reports whether component ends the pipeline.
func (g *Generator) IsTerminal(component string) bool {
	if g == nil {
		g = defaultGenerator
	}
	_, ok := g.terminals[component]
	return ok
}

func (g *Generator) now() time.Time {
	if g == nil || g.clock == nil {
		return time.Now()
	}
	return g.clock()
}

// Count returns how many messages the generator has created.
func (g *Generator) Count() uint64 {
	return g.counter.Load()
}

// Decode rebuilds a message produced by Message.Encode and binds it to g.
func (g *Generator) Decode(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapInvalid(err, "Generator", "Decode", "unmarshal envelope")
	}
	if env.ID == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Generator", "Decode", "message without id")
	}

	payload, err := decodePayload(env.Kind, env.Payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Generator", "Decode", "decode payload")
	}

	history := env.History
	if history == nil {
		history = make(History)
	}
	return &Message{
		ID:          env.ID,
		TraceID:     env.TraceID,
		Source:      env.Source,
		CreatedAt:   env.CreatedAt,
		Payload:     payload,
		ReachedExit: env.ReachedExit,
		history:     history,
		gen:         g,
	}, nil
}
