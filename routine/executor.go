package routine

import (
	"context"
	"runtime"
	"runtime/debug"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/types"
)

// Executor is an execution strategy for routines. Launch starts r, blocks until
// its Setup returned and reports the Setup error. On error Cleanup has already
// run and no Execution is returned.
type Executor interface {
	Mode() types.ExecutionMode
	Launch(ctx context.Context, r Routine) (*Execution, error)
}

// ThreadExecutor runs routines on goroutines multiplexed by the Go scheduler.
type ThreadExecutor struct{}

func (ThreadExecutor) Mode() types.ExecutionMode { return types.ModeThread }

func (ThreadExecutor) Launch(ctx context.Context, r Routine) (*Execution, error) {
	return launch(ctx, r, types.ModeThread, func(run func()) {
		go run()
	})
}

// ProcessExecutor runs each routine on a dedicated OS thread. The thread stays
// locked for the routine's whole run and is terminated when the routine exits,
// so thread-local state set by the routine never leaks into other work. Memory
// faults inside the routine surface as recoverable panics.
type ProcessExecutor struct{}

func (ProcessExecutor) Mode() types.ExecutionMode { return types.ModeProcess }

func (ProcessExecutor) Launch(ctx context.Context, r Routine) (*Execution, error) {
	return launch(ctx, r, types.ModeProcess, func(run func()) {
		go func() {
			// Never unlocked: the runtime discards the thread when this goroutine exits.
			runtime.LockOSThread()
			debug.SetPanicOnFault(true)
			run()
		}()
	})
}

// ExecutorFor returns the executor implementing mode.
func ExecutorFor(mode types.ExecutionMode) (Executor, error) {
	switch mode {
	case types.ModeThread:
		return ThreadExecutor{}, nil
	case types.ModeProcess:
		return ProcessExecutor{}, nil
	default:
		return nil, errors.WrapInvalid(errors.ErrUnknownExecutionMode, "routine", "ExecutorFor", string(mode))
	}
}

func launch(ctx context.Context, r Routine, mode types.ExecutionMode, spawn func(func())) (*Execution, error) {
	b := r.BaseRoutine()
	b.stop.Clear()

	exec := newExecution(r, mode)
	ready := make(chan error, 1)
	spawn(func() { exec.run(ctx, ready) })

	if err := <-ready; err != nil {
		<-exec.done
		return nil, err
	}
	return exec, nil
}
