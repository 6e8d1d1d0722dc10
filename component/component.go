package component

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
	"github.com/ItamarWilf/PipeRT/types"
)

// BaseTypeName is the type name of a plain Component.
const BaseTypeName = "Component"

type routineEntry struct {
	routine  routine.Routine
	typeName string
}

// Component owns a set of named queues and a set of named routines bound to
// them, and runs those routines together.
//
// Stop waits for every routine to finish its current MainLogic call and run
// Cleanup. There is no timeout: a routine that never returns from MainLogic
// blocks Stop forever. The component lock is not held while Stop waits, so
// Status and IsStopping stay responsive, and Run fails until the wait ends.
type Component struct {
	name            string
	typeName        string
	useSharedMemory bool
	deps            Dependencies
	logger          *slog.Logger
	validator       *ArgsValidator

	mu         sync.RWMutex
	queues     map[string]*queue.Queue
	routines   map[string]routineEntry
	executions map[string]*routine.Execution
	executor   routine.Executor
	stop       *routine.StopEvent
	ctx        context.Context
	cancel     context.CancelFunc
	running    bool
	// stopping is closed when the stop in progress has joined every routine.
	stopping chan struct{}
}

// Option configures a Component at construction.
type Option func(*Component)

// WithSharedMemory marks the component as exchanging frames through shared memory.
func WithSharedMemory(enabled bool) Option {
	return func(c *Component) { c.useSharedMemory = enabled }
}

// WithTypeName records the component type the instance was created from.
func WithTypeName(typeName string) Option {
	return func(c *Component) {
		if typeName != "" {
			c.typeName = typeName
		}
	}
}

// WithExecutor selects the initial execution strategy.
func WithExecutor(exec routine.Executor) Option {
	return func(c *Component) {
		if exec != nil {
			c.executor = exec
		}
	}
}

// New creates a stopped, empty component.
func New(name string, deps Dependencies, opts ...Option) *Component {
	c := &Component{
		name:       name,
		typeName:   BaseTypeName,
		deps:       deps,
		logger:     deps.GetLoggerWithComponent(name),
		validator:  NewArgsValidator(),
		queues:     make(map[string]*queue.Queue),
		routines:   make(map[string]routineEntry),
		executions: make(map[string]*routine.Execution),
		executor:   routine.ThreadExecutor{},
		stop:       routine.NewSetStopEvent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// TypeName returns the registered type the component was created from.
func (c *Component) TypeName() string { return c.typeName }

// UseSharedMemory reports whether the component exchanges frames through shared memory.
func (c *Component) UseSharedMemory() bool { return c.useSharedMemory }

// StopEvent returns the event shared with every owned routine. It is set
// whenever the component is not running.
func (c *Component) StopEvent() *routine.StopEvent { return c.stop }

// IsRunning reports whether Run succeeded and Stop has not been called since.
func (c *Component) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// IsStopping reports whether a stop is still waiting for routines to finish.
func (c *Component) IsStopping() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopping != nil
}

// ExecutionMode returns the current execution mode.
func (c *Component) ExecutionMode() types.ExecutionMode {
	return c.Runner().Mode()
}

// Runner returns the execution strategy newly started routines are bound to.
func (c *Component) Runner() routine.Executor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.executor
}

// CreateQueue adds a queue with the default capacity.
func (c *Component) CreateQueue(name string) types.Result {
	return c.CreateQueueWithCapacity(name, c.deps.queueCapacity())
}

// CreateQueueWithCapacity adds a queue with an explicit capacity.
func (c *Component) CreateQueueWithCapacity(name string, capacity int) types.Result {
	if err := ValidateName("queue", name); err != nil {
		return types.Failure("Failed to create queue in component %s: %v", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.queues[name]; exists {
		return types.Failure("Queue %s already exists in component %s", name, c.name)
	}

	opts := []queue.Option{queue.WithLogger(c.logger)}
	if c.deps.MetricsRegistry != nil {
		opts = append(opts, queue.WithMetrics(c.deps.MetricsRegistry, c.name+"."+name))
	}
	q, err := queue.New(name, capacity, opts...)
	if err != nil {
		return types.Failure("Failed to create queue %s in component %s: %v", name, c.name, err)
	}

	c.queues[name] = q
	c.logger.Debug("Queue created", "queue", name, "capacity", q.Capacity())
	return types.Success("Queue %s created in component %s", name, c.name)
}

// RemoveQueue deletes a queue no registered routine uses.
func (c *Component) RemoveQueue(name string) types.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, exists := c.queues[name]
	if !exists {
		return types.Failure("Queue %s does not exist in component %s", name, c.name)
	}
	for _, routineName := range sortedKeys(c.routines) {
		if c.routines[routineName].routine.UsesQueue(name) {
			return types.Failure("Queue %s is used by routine %s in component %s", name, routineName, c.name)
		}
	}

	delete(c.queues, name)
	if err := q.Close(); err != nil {
		c.logger.Warn("Failed to close queue", "queue", name, "error", err)
	}
	c.logger.Debug("Queue removed", "queue", name)
	return types.Success("Queue %s removed from component %s", name, c.name)
}

// Queue returns the named queue.
func (c *Component) Queue(name string) (*queue.Queue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.queues[name]
	return q, ok
}

// QueueNames returns the queue names in sorted order.
func (c *Component) QueueNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.queues)
}

// resolveQueue is used while c.mu is held by the caller.
func (c *Component) resolveQueue(name string) (*queue.Queue, bool) {
	q, ok := c.queues[name]
	return q, ok
}

// AddRoutine builds a routine of typeName from args and registers it as name.
// Queue-typed arguments name queues of this component. When the component is
// running the routine starts immediately; a Setup failure leaves it unregistered.
func (c *Component) AddRoutine(typeName, name string, args map[string]any) types.Result {
	if c.deps.Routines == nil {
		return types.Failure("Component %s has no routine registry", c.name)
	}
	if err := ValidateName("routine", name); err != nil {
		return types.Failure("Failed to add routine to component %s: %v", c.name, err)
	}
	if err := c.validator.Validate(args); err != nil {
		return types.Failure("Invalid arguments for routine %s: %v", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.routines[name]; exists {
		return types.Failure("Routine %s already exists in component %s", name, c.name)
	}

	r, err := c.deps.Routines.Create(typeName, name, routine.NewArgs(args, c.resolveQueue))
	if err != nil {
		if errors.Is(err, errors.ErrUnknownType) {
			return types.Failure("Routine type %s does not exist: %v", typeName, err)
		}
		return types.Failure("Failed to create routine %s: %v", name, err)
	}
	return c.register(r, typeName)
}

// AddRoutineInstance registers an already constructed routine.
func (c *Component) AddRoutineInstance(r routine.Routine) types.Result {
	if r == nil || r.BaseRoutine() == nil {
		return types.Failure("Cannot add a nil routine to component %s", c.name)
	}
	name := r.BaseRoutine().Name()
	if err := ValidateName("routine", name); err != nil {
		return types.Failure("Failed to add routine to component %s: %v", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.routines[name]; exists {
		return types.Failure("Routine %s already exists in component %s", name, c.name)
	}
	typeName := strings.TrimPrefix(fmt.Sprintf("%T", r), "*")
	return c.register(r, typeName)
}

// register binds r to this component. Caller holds c.mu.
func (c *Component) register(r routine.Routine, typeName string) types.Result {
	b := r.BaseRoutine()
	b.Attach(c.name, c.stop, c.deps.routineDeps(c.deps.GetLogger()))
	b.Bind(c.executor)

	if c.running {
		exec, err := c.launch(r)
		if err != nil {
			return types.Failure("Routine %s failed to start in component %s: %v", b.Name(), c.name, err)
		}
		c.executions[b.Name()] = exec
	}

	c.routines[b.Name()] = routineEntry{routine: r, typeName: typeName}
	c.logger.Debug("Routine added", "routine", b.Name(), "type", typeName, "mode", c.executor.Mode())
	return types.Success("Routine %s added to component %s", b.Name(), c.name)
}

// RemoveRoutine stops the routine if it is running and discards it.
func (c *Component) RemoveRoutine(name string) types.Result {
	c.mu.Lock()
	if _, exists := c.routines[name]; !exists {
		c.mu.Unlock()
		return types.Failure("Routine %s does not exist in component %s", name, c.name)
	}
	exec, running := c.executions[name]
	delete(c.executions, name)
	delete(c.routines, name)
	c.mu.Unlock()

	if running {
		exec.Stop()
		exec.Join()
	}
	c.logger.Debug("Routine removed", "routine", name)
	return types.Success("Routine %s removed from component %s", name, c.name)
}

// Routine returns the named routine.
func (c *Component) Routine(name string) (routine.Routine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.routines[name]
	return e.routine, ok
}

// RoutineNames returns the routine names in sorted order.
func (c *Component) RoutineNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.routines)
}

// RoutineCount returns the number of registered routines.
func (c *Component) RoutineCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routines)
}

// UpdateRoutineConfig delivers a live configuration change to a routine.
func (c *Component) UpdateRoutineConfig(name string, values map[string]any) types.Result {
	if err := c.validator.Validate(values); err != nil {
		return types.Failure("Invalid configuration for routine %s: %v", name, err)
	}
	r, ok := c.Routine(name)
	if !ok {
		return types.Failure("Routine %s does not exist in component %s", name, c.name)
	}
	r.BaseRoutine().RequestConfigUpdate(values)
	return types.Success("Configuration update queued for routine %s", name)
}

// Run clears the stop event and starts every routine. If any routine fails
// Setup, the ones already started are stopped and Run fails.
func (c *Component) Run() types.Result {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return types.Failure("Component %s is already running", c.name)
	}
	if c.stopping != nil {
		c.mu.Unlock()
		return types.Failure("Component %s is still stopping", c.name)
	}
	d, err := c.start()
	c.mu.Unlock()

	if err != nil {
		c.join(d)
		return types.Failure("Component %s failed to run: %v", c.name, err)
	}
	return types.Success("Component %s is running", c.name)
}

// start launches all routines. Caller holds c.mu. On a launch failure the
// routines already started are detached and returned for joining.
func (c *Component) start() (*detached, error) {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.stop.Clear()
	c.running = true

	for _, name := range sortedKeys(c.routines) {
		exec, err := c.launch(c.routines[name].routine)
		if err != nil {
			return c.detach(), err
		}
		c.executions[name] = exec
	}

	if m := c.deps.coreMetrics(); m != nil {
		m.RecordComponentRunning(c.name, true)
	}
	c.logger.Info("Component started", "routines", len(c.routines), "mode", c.executor.Mode())
	return nil, nil
}

func (c *Component) launch(r routine.Routine) (*routine.Execution, error) {
	exec, err := r.BaseRoutine().Executor().Launch(c.runContext(), r)
	if err != nil {
		c.logger.Error("Routine failed to start", "routine", r.BaseRoutine().Name(), "error", err)
		return nil, err
	}
	return exec, nil
}

func (c *Component) runContext() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Stop sets the stop event and waits for every routine to run Cleanup.
func (c *Component) Stop() types.Result {
	c.mu.Lock()
	if !c.running {
		stopping := c.stopping != nil
		c.mu.Unlock()
		if stopping {
			return types.Failure("Component %s is already stopping", c.name)
		}
		return types.Failure("Component %s is not running", c.name)
	}
	d := c.detach()
	c.mu.Unlock()

	if errs := c.join(d); len(errs) > 0 {
		c.logger.Warn("Component stopped with routine errors", "error", errors.Join(errs...))
	}
	return types.Success("Component %s stopped", c.name)
}

// detached holds the executions a stop took out of the component.
type detached struct {
	execs  []*routine.Execution
	cancel context.CancelFunc
	done   chan struct{}
}

// detach sets the stop event and takes every execution out of the component.
// Caller holds c.mu and must call join after releasing it.
func (c *Component) detach() *detached {
	c.stop.Set()
	d := &detached{cancel: c.cancel, done: make(chan struct{})}
	for _, name := range sortedKeys(c.executions) {
		d.execs = append(d.execs, c.executions[name])
		delete(c.executions, name)
	}
	c.cancel = nil
	c.ctx = nil
	c.running = false
	c.stopping = d.done
	return d
}

// join waits for detached executions. Caller must not hold c.mu.
func (c *Component) join(d *detached) []error {
	var errs []error
	for _, exec := range d.execs {
		exec.Join()
		if err := exec.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.cancel != nil {
		d.cancel()
	}

	c.mu.Lock()
	if c.stopping == d.done {
		c.stopping = nil
	}
	c.mu.Unlock()
	close(d.done)

	if m := c.deps.coreMetrics(); m != nil {
		m.RecordComponentRunning(c.name, false)
	}
	c.logger.Info("Component stopped")
	return errs
}

// ChangeExecutionMode rebinds every routine to the strategy for mode. A running
// component is stopped, rebound and started again.
func (c *Component) ChangeExecutionMode(mode string) types.Result {
	parsed, err := types.ParseExecutionMode(mode)
	if err != nil {
		return types.Failure("Cannot change execution mode of component %s: %v", c.name, err)
	}
	exec, err := routine.ExecutorFor(parsed)
	if err != nil {
		return types.Failure("Cannot change execution mode of component %s: %v", c.name, err)
	}

	c.mu.Lock()
	if c.stopping != nil {
		c.mu.Unlock()
		return types.Failure("Component %s is still stopping", c.name)
	}
	wasRunning := c.running
	if wasRunning {
		d := c.detach()
		c.mu.Unlock()
		c.join(d)
		c.mu.Lock()
	}

	c.executor = exec
	for _, e := range c.routines {
		e.routine.BaseRoutine().Bind(exec)
	}

	restart := wasRunning && !c.running && c.stopping == nil
	var d *detached
	if restart {
		d, err = c.start()
	}
	c.mu.Unlock()

	if err != nil {
		c.join(d)
		return types.Failure("Component %s changed to %s but failed to restart: %v", c.name, parsed, err)
	}
	c.logger.Info("Execution mode changed", "mode", parsed, "restarted", restart)
	return types.Success("Component %s execution mode set to %s", c.name, parsed)
}

// Close stops the component if needed, waits for a stop in progress and
// releases its queues.
func (c *Component) Close() {
	c.mu.Lock()
	var d *detached
	if c.running {
		d = c.detach()
	}
	stopping := c.stopping
	c.mu.Unlock()

	if d != nil {
		c.join(d)
	} else if stopping != nil {
		<-stopping
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, q := range c.queues {
		if err := q.Close(); err != nil {
			c.logger.Warn("Failed to close queue", "queue", name, "error", err)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
