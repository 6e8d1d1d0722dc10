package component

import (
	"github.com/ItamarWilf/PipeRT/pkg/buffer"
	"github.com/ItamarWilf/PipeRT/routine"
	"github.com/ItamarWilf/PipeRT/types"
)

// QueueStatus describes one queue of a component.
type QueueStatus struct {
	Name     string              `json:"name"`
	Length   int                 `json:"length"`
	Capacity int                 `json:"capacity"`
	Stats    buffer.StatsSummary `json:"stats"`
}

// RoutineStatus describes one routine of a component.
type RoutineStatus struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
	// Unhealthy is the reason a running routine gives for a lost connection.
	Unhealthy string `json:"unhealthy,omitempty"`
}

// Status is a point-in-time snapshot of a component.
type Status struct {
	Name            string              `json:"name"`
	Type            string              `json:"type"`
	Running         bool                `json:"running"`
	Stopping        bool                `json:"stopping,omitempty"`
	ExecutionMode   types.ExecutionMode `json:"execution_mode"`
	UseSharedMemory bool                `json:"use_shared_memory"`
	Queues          []QueueStatus       `json:"queues"`
	Routines        []RoutineStatus     `json:"routines"`
}

// Status reports the component's queues and routines in name order. Routine
// health is queried after the component lock is released.
func (c *Component) Status() Status {
	st, reporters := c.snapshotStatus()
	for i, hr := range reporters {
		if hr == nil {
			continue
		}
		if ok, reason := hr.Healthy(); !ok {
			st.Routines[i].Unhealthy = reason
		}
	}
	return st
}

func (c *Component) snapshotStatus() (Status, []routine.HealthReporter) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Name:            c.name,
		Type:            c.typeName,
		Running:         c.running,
		Stopping:        c.stopping != nil,
		ExecutionMode:   c.executor.Mode(),
		UseSharedMemory: c.useSharedMemory,
		Queues:          make([]QueueStatus, 0, len(c.queues)),
		Routines:        make([]RoutineStatus, 0, len(c.routines)),
	}

	for _, name := range sortedKeys(c.queues) {
		q := c.queues[name]
		st.Queues = append(st.Queues, QueueStatus{
			Name:     name,
			Length:   q.Len(),
			Capacity: q.Capacity(),
			Stats:    q.Stats(),
		})
	}

	reporters := make([]routine.HealthReporter, 0, len(c.routines))
	for _, name := range sortedKeys(c.routines) {
		entry := c.routines[name]
		rs := RoutineStatus{Name: name, Type: entry.typeName}
		var hr routine.HealthReporter
		if exec, ok := c.executions[name]; ok {
			rs.Running = exec.Running()
			if err := exec.Err(); err != nil {
				rs.Error = err.Error()
			}
			if rs.Running {
				hr, _ = entry.routine.(routine.HealthReporter)
			}
		}
		st.Routines = append(st.Routines, rs)
		reporters = append(reporters, hr)
	}
	return st, reporters
}
