package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// Routine type names registered by RegisterDummyRoutines.
const (
	DummyRoutineType          = "DummyRoutine"
	DummyRoutineWithQueueType = "DummyRoutineWithQueue"
)

// DummyLatency is the value every DummyRoutine iteration reports to its collector.
const DummyLatency = 100 * time.Millisecond

// DummyRoutine is a routine that does nothing but count lifecycle calls.
// Each MainLogic call reports DummyLatency to the metrics collector and
// reports work done. The Func fields inject behaviour.
type DummyRoutine struct {
	*routine.Base

	SetupFunc   func(ctx context.Context) error
	LogicFunc   func(ctx context.Context) (bool, error)
	CleanupFunc func(ctx context.Context) error

	setupCalls   atomic.Int64
	logicCalls   atomic.Int64
	cleanupCalls atomic.Int64
}

// NewDummyRoutine creates a detached DummyRoutine.
func NewDummyRoutine(name string) *DummyRoutine {
	return &DummyRoutine{Base: routine.NewBase(name)}
}

// Setup implements routine.Routine.
func (d *DummyRoutine) Setup(ctx context.Context) error {
	d.setupCalls.Add(1)
	if d.SetupFunc != nil {
		return d.SetupFunc(ctx)
	}
	return nil
}

// MainLogic implements routine.Routine.
func (d *DummyRoutine) MainLogic(ctx context.Context) (bool, error) {
	d.logicCalls.Add(1)
	d.Collector().CollectLatency(DummyLatency, d.ComponentName())
	if d.LogicFunc != nil {
		return d.LogicFunc(ctx)
	}
	return true, nil
}

// Cleanup implements routine.Routine.
func (d *DummyRoutine) Cleanup(ctx context.Context) error {
	d.cleanupCalls.Add(1)
	if d.CleanupFunc != nil {
		return d.CleanupFunc(ctx)
	}
	return nil
}

// UsesQueue implements routine.Routine.
func (d *DummyRoutine) UsesQueue(string) bool { return false }

// StopAfterLogic installs an AfterLogic handler, first in line, that sets the
// routine's own stop event so the run ends after one iteration.
func (d *DummyRoutine) StopAfterLogic() {
	d.AddEventHandler(routine.EventAfterLogic, func(_ context.Context, r routine.Routine) {
		r.BaseRoutine().StopEvent().Set()
	}, true)
}

// SetupCalls returns how many times Setup ran.
func (d *DummyRoutine) SetupCalls() int64 { return d.setupCalls.Load() }

// LogicCalls returns how many times MainLogic ran.
func (d *DummyRoutine) LogicCalls() int64 { return d.logicCalls.Load() }

// CleanupCalls returns how many times Cleanup ran.
func (d *DummyRoutine) CleanupCalls() int64 { return d.cleanupCalls.Load() }

// DummyRoutineWithQueue is a DummyRoutine bound to one queue, which it drains.
type DummyRoutineWithQueue struct {
	*DummyRoutine
	queue *queue.Queue
}

// NewDummyRoutineWithQueue creates a detached routine draining q.
func NewDummyRoutineWithQueue(name string, q *queue.Queue) *DummyRoutineWithQueue {
	return &DummyRoutineWithQueue{DummyRoutine: NewDummyRoutine(name), queue: q}
}

// MainLogic takes one message from the queue. It reports no work when the
// queue is empty.
func (d *DummyRoutineWithQueue) MainLogic(ctx context.Context) (bool, error) {
	if _, err := d.DummyRoutine.MainLogic(ctx); err != nil {
		return false, err
	}
	_, ok := d.queue.Get()
	return ok, nil
}

// UsesQueue reports whether name is the drained queue.
func (d *DummyRoutineWithQueue) UsesQueue(name string) bool {
	return d.queue != nil && d.queue.Name() == name
}

// RegisterDummyRoutines adds both dummy routine types to registry.
func RegisterDummyRoutines(registry *routine.Registry) error {
	if err := registry.Register(&routine.Registration{
		Name:        DummyRoutineType,
		Description: "Counts lifecycle calls and reports a fixed latency",
		Factory: func(name string, _ routine.Args) (routine.Routine, error) {
			return NewDummyRoutine(name), nil
		},
	}); err != nil {
		return err
	}

	return registry.Register(&routine.Registration{
		Name:        DummyRoutineWithQueueType,
		Description: "DummyRoutine that drains one queue",
		Parameters: []routine.Parameter{
			{Name: "queue", Type: routine.ParamQueue, Required: true},
		},
		Factory: func(name string, args routine.Args) (routine.Routine, error) {
			q, err := args.Queue("queue")
			if err != nil {
				return nil, err
			}
			return NewDummyRoutineWithQueue(name, q), nil
		},
	})
}

// NewRoutineRegistry returns a routine registry holding the dummy routine types.
func NewRoutineRegistry() *routine.Registry {
	registry := routine.NewRegistry()
	if err := RegisterDummyRoutines(registry); err != nil {
		panic(err)
	}
	return registry
}
