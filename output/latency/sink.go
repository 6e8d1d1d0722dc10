package latency

import (
	"context"
	"sync"
	"time"

	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// TypeName is the routine type registered by Register.
const TypeName = "LatencySink"

// Summary aggregates the latencies a Sink observed.
type Summary struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
}

// Sink consumes messages at the end of a pipeline. It records their exit,
// reports the pipeline latency to the metrics collector and discards them.
// Messages that have not reached a terminal component report the time spent
// in the owning component instead.
type Sink struct {
	*routine.Base

	queue *queue.Queue

	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// New creates a detached Sink draining q.
func New(name string, q *queue.Queue) *Sink {
	return &Sink{Base: routine.NewBase(name), queue: q}
}

// Setup resets the summary.
func (s *Sink) Setup(context.Context) error {
	s.mu.Lock()
	s.count, s.total, s.min, s.max = 0, 0, 0, 0
	s.mu.Unlock()
	return nil
}

// MainLogic consumes one message. It reports no work when the queue is empty.
func (s *Sink) MainLogic(context.Context) (bool, error) {
	msg, ok := s.queue.Get()
	if !ok {
		return false, nil
	}

	component := s.ComponentName()
	msg.RecordExit(component)

	latency, ok := msg.PipelineLatency(component)
	if !ok {
		latency, ok = msg.Latency(component)
	}
	if ok {
		s.Collector().CollectLatency(latency, component)
		s.observe(latency)
	}
	return true, nil
}

// Cleanup logs the summary.
func (s *Sink) Cleanup(context.Context) error {
	sum := s.Summary()
	s.Logger().Info("Latency summary", "count", sum.Count, "min", sum.Min, "max", sum.Max, "mean", sum.Mean)
	return nil
}

// UsesQueue implements routine.Routine.
func (s *Sink) UsesQueue(name string) bool {
	return s.queue != nil && s.queue.Name() == name
}

// Summary returns the latencies observed since the last Setup.
func (s *Sink) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{Count: s.count, Min: s.min, Max: s.max}
	if s.count > 0 {
		sum.Mean = s.total / time.Duration(s.count)
	}
	return sum
}

func (s *Sink) observe(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 || latency < s.min {
		s.min = latency
	}
	if latency > s.max {
		s.max = latency
	}
	s.count++
	s.total += latency
}
