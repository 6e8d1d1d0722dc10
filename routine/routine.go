package routine

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/ItamarWilf/PipeRT/message"
	"github.com/ItamarWilf/PipeRT/metric"
)

// Routine is a unit of schedulable work. Concrete routines embed *Base and
// implement the lifecycle methods.
type Routine interface {
	// Setup runs once per run, before the first MainLogic call. An error
	// aborts the run and is reported to whoever started the routine.
	Setup(ctx context.Context) error

	// MainLogic performs one tick of work. It returns true when work was done
	// and false when nothing was available, in which case the loop yields.
	// It must not block indefinitely: stop requests are only observed between calls.
	MainLogic(ctx context.Context) (bool, error)

	// Cleanup runs exactly once on the way out of every run, including after
	// a failed Setup, a MainLogic error or a panic.
	Cleanup(ctx context.Context) error

	// UsesQueue reports whether the routine references the named queue.
	UsesQueue(name string) bool

	// BaseRoutine returns the embedded scheduling state.
	BaseRoutine() *Base
}

// HealthReporter is implemented by routines that hold a connection to an
// external service. Healthy returns false and a reason while it is down.
type HealthReporter interface {
	Healthy() (bool, string)
}

// Event names a point in the run loop where handlers fire.
type Event string

// Lifecycle events.
const (
	EventAfterSetup    Event = "after_setup"
	EventBeforeLogic   Event = "before_logic"
	EventAfterLogic    Event = "after_logic"
	EventBeforeCleanup Event = "before_cleanup"
)

// Handler is invoked at an Event with the routine that fired it.
type Handler func(ctx context.Context, r Routine)

// StateUpdatedConfig is the state key under which live configuration updates
// are delivered to a running routine.
const StateUpdatedConfig = "updated_config"

// DefaultIdleWait is how long the loop waits after MainLogic reports no work.
const DefaultIdleWait = time.Millisecond

// Dependencies are the shared collaborators a component hands to its routines.
type Dependencies struct {
	Logger    *slog.Logger
	Collector metric.Collector
	Metrics   *metric.Metrics
	Generator *message.Generator
}

// Base holds the scheduling state shared by all routines.
type Base struct {
	name string

	mu        sync.RWMutex
	component string
	logger    *slog.Logger
	collector metric.Collector
	metrics   *metric.Metrics
	generator *message.Generator
	parent    *StopEvent
	executor  Executor
	idleWait  time.Duration
	handlers  map[Event][]Handler

	stop *StopEvent

	stateMu sync.Mutex
	state   map[string]any
}

// NewBase creates detached scheduling state for a routine called name.
func NewBase(name string) *Base {
	return &Base{
		name:      name,
		logger:    slog.Default(),
		collector: metric.NoopCollector{},
		generator: message.Default(),
		parent:    NewStopEvent(),
		executor:  ThreadExecutor{},
		idleWait:  DefaultIdleWait,
		handlers:  make(map[Event][]Handler),
		stop:      NewSetStopEvent(),
		state:     make(map[string]any),
	}
}

// BaseRoutine implements Routine.
func (b *Base) BaseRoutine() *Base { return b }

// Name returns the routine name, unique within its component.
func (b *Base) Name() string { return b.name }

// ComponentName returns the owning component's name, used for attribution only.
func (b *Base) ComponentName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.component
}

// Attach binds the routine to its component's stop event and collaborators.
// Nil dependencies keep their defaults.
func (b *Base) Attach(component string, parent *StopEvent, deps Dependencies) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.component = component
	if parent != nil {
		b.parent = parent
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b.logger = logger.With("component", component, "routine", b.name)
	if deps.Collector != nil {
		b.collector = deps.Collector
	}
	if deps.Metrics != nil {
		b.metrics = deps.Metrics
	}
	if deps.Generator != nil {
		b.generator = deps.Generator
	}
}

// Bind selects the execution strategy used the next time the routine starts.
func (b *Base) Bind(exec Executor) {
	if exec == nil {
		return
	}
	b.mu.Lock()
	b.executor = exec
	b.mu.Unlock()
}

// Executor returns the bound execution strategy.
func (b *Base) Executor() Executor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.executor
}

// Logger returns the routine logger.
func (b *Base) Logger() *slog.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logger
}

// Collector returns the shared metrics collector.
func (b *Base) Collector() metric.Collector {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.collector
}

// Generator returns the message generator used to create new messages.
func (b *Base) Generator() *message.Generator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generator
}

// SetIdleWait sets how long the loop waits after MainLogic reports no work.
// Zero yields the processor without sleeping.
func (b *Base) SetIdleWait(d time.Duration) {
	b.mu.Lock()
	b.idleWait = max(d, 0)
	b.mu.Unlock()
}

// StopEvent returns the routine's own stop event.
func (b *Base) StopEvent() *StopEvent { return b.stop }

// ParentStopEvent returns the owning component's stop event.
func (b *Base) ParentStopEvent() *StopEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parent
}

// ShouldStop reports whether either stop event is set.
func (b *Base) ShouldStop() bool {
	return b.stop.IsSet() || b.ParentStopEvent().IsSet()
}

// AddEventHandler registers h for event. With first set, h runs before the
// handlers already registered; otherwise it is appended.
func (b *Base) AddEventHandler(event Event, h Handler, first bool) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if first {
		b.handlers[event] = append([]Handler{h}, b.handlers[event]...)
	} else {
		b.handlers[event] = append(b.handlers[event], h)
	}
}

// RemoveEventHandlers drops every handler registered for event.
func (b *Base) RemoveEventHandlers(event Event) {
	b.mu.Lock()
	delete(b.handlers, event)
	b.mu.Unlock()
}

// EventHandlers returns a copy of the handlers registered for event, in call order.
func (b *Base) EventHandlers(event Event) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.handlers[event]...)
}

// SetState stores a value in the routine's private state bag.
func (b *Base) SetState(key string, value any) {
	b.stateMu.Lock()
	b.state[key] = value
	b.stateMu.Unlock()
}

// State returns a value from the state bag.
func (b *Base) State(key string) (any, bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	v, ok := b.state[key]
	return v, ok
}

// TakeState removes and returns a value from the state bag.
func (b *Base) TakeState(key string) (any, bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	v, ok := b.state[key]
	delete(b.state, key)
	return v, ok
}

// StateSnapshot returns a copy of the state bag.
func (b *Base) StateSnapshot() map[string]any {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return maps.Clone(b.state)
}

// RequestConfigUpdate queues a live configuration change. Routines that
// support it consume StateUpdatedConfig from a BeforeLogic handler.
func (b *Base) RequestConfigUpdate(values map[string]any) {
	b.SetState(StateUpdatedConfig, maps.Clone(values))
}

func (b *Base) resetState() {
	b.stateMu.Lock()
	clear(b.state)
	b.stateMu.Unlock()
}

func (b *Base) coreMetrics() *metric.Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

func (b *Base) idle() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idleWait
}
