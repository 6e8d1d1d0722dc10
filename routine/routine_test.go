package routine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/metric"
	"github.com/ItamarWilf/PipeRT/types"
)

type countingRoutine struct {
	*Base

	setups   atomic.Int32
	logics   atomic.Int32
	cleanups atomic.Int32

	setupErr error
	logic    func(n int32) (bool, error)
}

func newCounting(name string) *countingRoutine {
	r := &countingRoutine{Base: NewBase(name)}
	r.SetIdleWait(0)
	return r
}

func (r *countingRoutine) Setup(context.Context) error {
	r.setups.Add(1)
	r.SetState("setup", true)
	return r.setupErr
}

func (r *countingRoutine) MainLogic(context.Context) (bool, error) {
	n := r.logics.Add(1)
	if r.logic != nil {
		return r.logic(n)
	}
	return true, nil
}

func (r *countingRoutine) Cleanup(context.Context) error {
	r.cleanups.Add(1)
	return nil
}

func (r *countingRoutine) UsesQueue(string) bool { return false }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestStopEvent(t *testing.T) {
	e := NewStopEvent()
	assert.False(t, e.IsSet())

	done := e.Done()
	e.Set()
	e.Set()
	assert.True(t, e.IsSet())
	select {
	case <-done:
	default:
		t.Fatal("done channel should be closed after Set")
	}

	e.Clear()
	assert.False(t, e.IsSet())
	select {
	case <-e.Done():
		t.Fatal("cleared event must not be done")
	default:
	}

	assert.True(t, NewSetStopEvent().IsSet())
}

func TestExecutors_RunAndStop(t *testing.T) {
	for _, exec := range []Executor{ThreadExecutor{}, ProcessExecutor{}} {
		t.Run(string(exec.Mode()), func(t *testing.T) {
			r := newCounting("worker")

			run, err := exec.Launch(context.Background(), r)
			require.NoError(t, err)
			assert.Equal(t, exec.Mode(), run.Mode())
			assert.Same(t, r, run.Routine())
			assert.True(t, run.Running())
			assert.Equal(t, int32(1), r.setups.Load())

			waitFor(t, func() bool { return r.logics.Load() > 3 })

			run.Stop()
			run.Join()

			assert.False(t, run.Running())
			assert.NoError(t, run.Err())
			assert.Equal(t, int32(1), r.cleanups.Load())
			assert.True(t, r.StopEvent().IsSet())
		})
	}
}

func TestLaunch_SetupFailure(t *testing.T) {
	r := newCounting("broken")
	r.setupErr = errors.New("camera unplugged")

	run, err := ThreadExecutor{}.Launch(context.Background(), r)
	require.Error(t, err)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, errors.ErrSetupFailed)
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "camera unplugged")

	assert.Equal(t, int32(0), r.logics.Load())
	assert.Equal(t, int32(1), r.cleanups.Load(), "cleanup runs after failed setup")
}

func TestLaunch_MainLogicError(t *testing.T) {
	r := newCounting("flaky")
	r.logic = func(n int32) (bool, error) {
		if n == 3 {
			return false, errors.ErrConnectionLost
		}
		return true, nil
	}

	run, err := ThreadExecutor{}.Launch(context.Background(), r)
	require.NoError(t, err)

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("routine should end after main logic error")
	}

	assert.ErrorIs(t, run.Err(), errors.ErrConnectionLost)
	assert.Equal(t, int32(3), r.logics.Load())
	assert.Equal(t, int32(1), r.cleanups.Load())
}

func TestLaunch_PanicIsIsolated(t *testing.T) {
	for _, exec := range []Executor{ThreadExecutor{}, ProcessExecutor{}} {
		t.Run(string(exec.Mode()), func(t *testing.T) {
			r := newCounting("panicky")
			r.logic = func(int32) (bool, error) { panic("boom") }

			run, err := exec.Launch(context.Background(), r)
			require.NoError(t, err)
			run.Join()

			assert.ErrorIs(t, run.Err(), errors.ErrRoutinePanic)
			assert.Contains(t, run.Err().Error(), "boom")
			assert.Equal(t, int32(1), r.cleanups.Load())
		})
	}
}

func TestLaunch_ParentStopEvent(t *testing.T) {
	parent := NewStopEvent()
	r := newCounting("child")
	r.Attach("comp", parent, Dependencies{})
	assert.Equal(t, "comp", r.ComponentName())

	run, err := ThreadExecutor{}.Launch(context.Background(), r)
	require.NoError(t, err)

	parent.Set()
	run.Join()
	assert.Equal(t, int32(1), r.cleanups.Load())
	assert.Same(t, parent, r.ParentStopEvent())
}

func TestLaunch_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newCounting("ctx")
	r.SetIdleWait(time.Hour)
	r.logic = func(int32) (bool, error) { return false, nil }

	run, err := ThreadExecutor{}.Launch(ctx, r)
	require.NoError(t, err)
	cancel()

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context cancel should interrupt the idle wait")
	}
}

func TestIdleWaitInterruptedByStop(t *testing.T) {
	r := newCounting("idle")
	r.SetIdleWait(time.Hour)
	r.logic = func(int32) (bool, error) { return false, nil }

	run, err := ThreadExecutor{}.Launch(context.Background(), r)
	require.NoError(t, err)
	waitFor(t, func() bool { return r.logics.Load() == 1 })

	start := time.Now()
	run.Stop()
	run.Join()
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), r.logics.Load())
}

func TestEventHandlers_Order(t *testing.T) {
	r := newCounting("hooks")

	var mu sync.Mutex
	var calls []string
	record := func(name string) Handler {
		return func(context.Context, Routine) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
		}
	}

	r.AddEventHandler(EventAfterSetup, record("after_setup"), false)
	r.AddEventHandler(EventBeforeLogic, record("before_b"), false)
	r.AddEventHandler(EventBeforeLogic, record("before_a"), true)
	r.AddEventHandler(EventAfterLogic, record("after"), false)
	// Stop after the first iteration from a handler placed at the front.
	r.AddEventHandler(EventAfterLogic, func(_ context.Context, rt Routine) {
		rt.BaseRoutine().StopEvent().Set()
	}, true)
	r.AddEventHandler(EventBeforeCleanup, record("before_cleanup"), false)
	r.AddEventHandler(EventBeforeCleanup, nil, false)

	run, err := ThreadExecutor{}.Launch(context.Background(), r)
	require.NoError(t, err)
	run.Join()

	assert.Equal(t, int32(1), r.logics.Load())
	assert.Equal(t, []string{"after_setup", "before_a", "before_b", "after", "before_cleanup"}, calls)
	assert.Len(t, r.EventHandlers(EventBeforeCleanup), 1)

	r.RemoveEventHandlers(EventAfterLogic)
	assert.Empty(t, r.EventHandlers(EventAfterLogic))
}

func TestEventHandler_PanicDoesNotStopRoutine(t *testing.T) {
	r := newCounting("hooks")
	r.AddEventHandler(EventBeforeLogic, func(context.Context, Routine) { panic("bad hook") }, false)

	run, err := ThreadExecutor{}.Launch(context.Background(), r)
	require.NoError(t, err)
	waitFor(t, func() bool { return r.logics.Load() > 2 })
	run.Stop()
	run.Join()
	assert.NoError(t, run.Err())
}

func TestRestartResetsState(t *testing.T) {
	r := newCounting("again")
	exec := ThreadExecutor{}

	for i := 1; i <= 2; i++ {
		r.SetState("leftover", i)

		run, err := exec.Launch(context.Background(), r)
		require.NoError(t, err)

		_, ok := r.State("leftover")
		assert.False(t, ok, "state is reset on every setup")
		v, _ := r.State("setup")
		assert.Equal(t, true, v)

		run.Stop()
		run.Join()
		assert.Equal(t, int32(i), r.setups.Load())
		assert.Equal(t, int32(i), r.cleanups.Load())
	}
}

func TestStateBag(t *testing.T) {
	b := NewBase("s")
	b.RequestConfigUpdate(map[string]any{"fps": 5})

	snap := b.StateSnapshot()
	assert.Contains(t, snap, StateUpdatedConfig)

	v, ok := b.TakeState(StateUpdatedConfig)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"fps": 5}, v)
	_, ok = b.State(StateUpdatedConfig)
	assert.False(t, ok)
}

func TestBind(t *testing.T) {
	b := NewBase("x")
	assert.Equal(t, types.ModeThread, b.Executor().Mode())

	b.Bind(ProcessExecutor{})
	assert.Equal(t, types.ModeProcess, b.Executor().Mode())
	b.Bind(nil)
	assert.Equal(t, types.ModeProcess, b.Executor().Mode())

	exec, err := ExecutorFor(types.ModeThread)
	require.NoError(t, err)
	assert.Equal(t, ThreadExecutor{}, exec)

	_, err = ExecutorFor("fiber")
	assert.ErrorIs(t, err, errors.ErrUnknownExecutionMode)
	assert.NotEqual(t, Executor(ThreadExecutor{}), Executor(ProcessExecutor{}))
}

func TestMetricsRecorded(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	m := registry.CoreMetrics()

	r := newCounting("measured")
	r.logic = func(n int32) (bool, error) { return n%2 == 0, nil }
	r.Attach("cam", NewStopEvent(), Dependencies{Metrics: m, Collector: metric.CollectorFor(registry)})

	run, err := ThreadExecutor{}.Launch(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoutineRunning.WithLabelValues("cam", "measured", "thread")))

	waitFor(t, func() bool { return r.logics.Load() >= 6 })
	run.Stop()
	run.Join()

	work := testutil.ToFloat64(m.RoutineIterations.WithLabelValues("cam", "measured"))
	idle := testutil.ToFloat64(m.RoutineIdle.WithLabelValues("cam", "measured"))
	assert.Equal(t, float64(r.logics.Load()), work+idle)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RoutineRunning.WithLabelValues("cam", "measured", "thread")))
}
