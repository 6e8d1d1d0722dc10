package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItamarWilf/PipeRT/component"
	"github.com/ItamarWilf/PipeRT/pkg/buffer"
)

func TestLevels(t *testing.T) {
	assert.True(t, NewHealthy("a", "").IsHealthy())
	assert.True(t, NewHealthy("a", "").Healthy)
	assert.True(t, NewDegraded("a", "").IsDegraded())
	assert.False(t, NewDegraded("a", "").Healthy)
	assert.True(t, NewUnhealthy("a", "").IsUnhealthy())
	assert.False(t, Status{}.IsHealthy())
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty is healthy", nil, LevelHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, LevelHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, LevelDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, LevelUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("pipeline", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestFromComponentStatus(t *testing.T) {
	queues := []component.QueueStatus{
		{Name: "q", Stats: buffer.StatsSummary{Reads: 7, Drops: 2}},
	}

	t.Run("stopped component is healthy", func(t *testing.T) {
		st := FromComponentStatus(component.Status{
			Name:     "cam",
			Routines: []component.RoutineStatus{{Name: "gen"}},
		})
		assert.True(t, st.IsHealthy())
		require.Len(t, st.SubStatuses, 1)
		assert.Equal(t, "cam.gen", st.SubStatuses[0].Component)
	})

	t.Run("all routines running", func(t *testing.T) {
		st := FromComponentStatus(component.Status{
			Name:     "cam",
			Running:  true,
			Queues:   queues,
			Routines: []component.RoutineStatus{{Name: "a", Running: true}, {Name: "b", Running: true}},
		})
		assert.True(t, st.IsHealthy())
		require.NotNil(t, st.Metrics)
		assert.Equal(t, 2, st.Metrics.RoutinesRunning)
		assert.Equal(t, int64(7), st.Metrics.MessagesProcessed)
		assert.Equal(t, int64(2), st.Metrics.MessagesDropped)
	})

	t.Run("one routine failed", func(t *testing.T) {
		st := FromComponentStatus(component.Status{
			Name:    "cam",
			Running: true,
			Routines: []component.RoutineStatus{
				{Name: "a", Running: true},
				{Name: "b", Error: "dial redis://10.0.0.1:6379 refused"},
			},
		})
		assert.True(t, st.IsDegraded())
		assert.Equal(t, 1, st.Metrics.ErrorCount)
		assert.Equal(t, "dial [URL] refused", st.SubStatuses[1].Message)
	})

	t.Run("routine lost its connection", func(t *testing.T) {
		st := FromComponentStatus(component.Status{
			Name:    "cam",
			Running: true,
			Routines: []component.RoutineStatus{
				{Name: "a", Running: true},
				{Name: "b", Running: true, Unhealthy: "NATS connection disconnected after 4 failures"},
			},
		})
		assert.True(t, st.IsDegraded())
		assert.Equal(t, "1 routines lost their connection", st.Message)
		assert.Equal(t, 2, st.Metrics.RoutinesRunning)
		assert.Zero(t, st.Metrics.ErrorCount)
		assert.True(t, st.SubStatuses[1].IsDegraded())
		assert.Equal(t, "NATS connection disconnected after 4 failures", st.SubStatuses[1].Message)
	})

	t.Run("stuck in stop", func(t *testing.T) {
		st := FromComponentStatus(component.Status{
			Name:     "cam",
			Stopping: true,
			Routines: []component.RoutineStatus{{Name: "a", Running: true}},
		})
		assert.True(t, st.IsDegraded())
		assert.Equal(t, "Component is still stopping", st.Message)
	})

	t.Run("nothing running", func(t *testing.T) {
		st := FromComponentStatus(component.Status{
			Name:     "cam",
			Running:  true,
			Routines: []component.RoutineStatus{{Name: "a", Error: "boom"}},
		})
		assert.True(t, st.IsUnhealthy())
	})
}

func TestFromPipeline(t *testing.T) {
	st := FromPipeline("pipert", []component.Status{
		{Name: "a"},
		{Name: "b", Running: true, Routines: []component.RoutineStatus{{Name: "r", Error: "x"}}},
	})
	assert.True(t, st.IsUnhealthy())
	assert.Len(t, st.SubStatuses, 2)
}

func TestWithSubStatus_DoesNotShareBacking(t *testing.T) {
	base := NewHealthy("pipert", "ok").WithSubStatus(NewHealthy("cam", "ok"))
	a := base.WithSubStatus(NewDegraded("writer", "slow"))
	b := base.WithSubStatus(NewUnhealthy("display", "gone"))

	require.Len(t, a.SubStatuses, 2)
	require.Len(t, b.SubStatuses, 2)
	assert.Equal(t, "writer", a.SubStatuses[1].Component)
	assert.Equal(t, "display", b.SubStatuses[1].Component)

	base.SubStatuses[0].Message = "changed"
	assert.Equal(t, "ok", a.SubStatuses[0].Message)
}
