package routine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/types"
)

// Execution is one run of a routine, from Setup to Cleanup.
type Execution struct {
	routine Routine
	mode    types.ExecutionMode
	done    chan struct{}
	running atomic.Bool

	mu  sync.Mutex
	err error
}

func newExecution(r Routine, mode types.ExecutionMode) *Execution {
	return &Execution{
		routine: r,
		mode:    mode,
		done:    make(chan struct{}),
	}
}

// Routine returns the routine being executed.
func (e *Execution) Routine() Routine { return e.routine }

// Mode returns the execution mode the run was started with.
func (e *Execution) Mode() types.ExecutionMode { return e.mode }

// Stop sets the routine's own stop event. It does not wait.
func (e *Execution) Stop() { e.routine.BaseRoutine().stop.Set() }

// Join blocks until Cleanup has returned. A routine that never returns from
// MainLogic blocks Join forever.
func (e *Execution) Join() { <-e.done }

// Done is closed once the run has finished.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Running reports whether the run is between Setup and Cleanup.
func (e *Execution) Running() bool { return e.running.Load() }

// Err returns the error that ended the run, if any.
func (e *Execution) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *Execution) addErr(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.err = errors.Join(e.err, err)
	e.mu.Unlock()
}

func (e *Execution) run(ctx context.Context, ready chan<- error) {
	defer close(e.done)

	b := e.routine.BaseRoutine()
	logger := b.Logger()
	m := b.coreMetrics()
	component := b.ComponentName()

	b.resetState()
	setupErr := e.guard("setup", func() error { return e.routine.Setup(ctx) })
	if setupErr != nil {
		setupErr = errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrSetupFailed, setupErr),
			"Routine", "Setup", b.Name())
		logger.Error("Routine setup failed", "error", setupErr)
		if m != nil {
			m.RecordRoutineError(component, b.Name(), "setup")
		}
		e.addErr(setupErr)
	} else {
		e.running.Store(true)
		if m != nil {
			m.RecordRoutineRunning(component, b.Name(), string(e.mode), true)
		}
		logger.Debug("Routine started", "mode", e.mode)
		e.fire(ctx, EventAfterSetup)
	}

	ready <- setupErr

	if setupErr == nil {
		if err := e.loop(ctx); err != nil {
			logger.Error("Routine main logic failed", "error", err)
			if m != nil {
				m.RecordRoutineError(component, b.Name(), "main_logic")
			}
			e.addErr(err)
		}
	}

	cleanupCtx := context.WithoutCancel(ctx)
	if setupErr == nil {
		e.fire(cleanupCtx, EventBeforeCleanup)
	}
	if err := e.guard("cleanup", func() error { return e.routine.Cleanup(cleanupCtx) }); err != nil {
		err = errors.Wrap(err, "Routine", "Cleanup", b.Name())
		logger.Error("Routine cleanup failed", "error", err)
		if m != nil {
			m.RecordRoutineError(component, b.Name(), "cleanup")
		}
		e.addErr(err)
	}

	e.running.Store(false)
	if m != nil && setupErr == nil {
		m.RecordRoutineRunning(component, b.Name(), string(e.mode), false)
	}
	logger.Debug("Routine stopped")
}

func (e *Execution) loop(ctx context.Context) error {
	b := e.routine.BaseRoutine()
	m := b.coreMetrics()
	component := b.ComponentName()

	for !e.shouldStop(ctx) {
		e.fire(ctx, EventBeforeLogic)

		var didWork bool
		start := time.Now()
		err := e.guard("main_logic", func() error {
			var err error
			didWork, err = e.routine.MainLogic(ctx)
			return err
		})
		if m != nil {
			m.RecordIteration(component, b.Name(), didWork, time.Since(start))
		}
		if err != nil {
			if errors.Is(err, errors.ErrRoutinePanic) {
				return err
			}
			return errors.WrapFatal(err, "Routine", "MainLogic", b.Name())
		}

		e.fire(ctx, EventAfterLogic)

		if !didWork {
			e.yield(ctx)
		}
	}
	return nil
}

func (e *Execution) shouldStop(ctx context.Context) bool {
	return e.routine.BaseRoutine().ShouldStop() || ctx.Err() != nil
}

// yield gives sibling routines a chance to run after an idle tick. A stop
// request ends the wait early.
func (e *Execution) yield(ctx context.Context) {
	b := e.routine.BaseRoutine()
	wait := b.idle()
	if wait <= 0 {
		runtime.Gosched()
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-b.stop.Done():
	case <-b.ParentStopEvent().Done():
	case <-ctx.Done():
	}
}

// fire runs the handlers of event in order. A panicking handler is logged and
// does not prevent the others from running.
func (e *Execution) fire(ctx context.Context, event Event) {
	b := e.routine.BaseRoutine()
	for _, h := range b.EventHandlers(event) {
		if err := e.guard(string(event), func() error { h(ctx, e.routine); return nil }); err != nil {
			b.Logger().Error("Event handler failed", "event", event, "error", err)
			if m := b.coreMetrics(); m != nil {
				m.RecordRoutineError(b.ComponentName(), b.Name(), string(event))
			}
		}
	}
}

// guard runs fn and converts a panic into an error.
func (e *Execution) guard(phase string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.WrapFatal(fmt.Errorf("%w in %s: %v", errors.ErrRoutinePanic, phase, p),
				"Routine", phase, e.routine.BaseRoutine().Name())
		}
	}()
	return fn()
}
