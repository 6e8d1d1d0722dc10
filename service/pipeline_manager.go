// Package service provides the PipelineManager and its HTTP API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ItamarWilf/PipeRT/component"
	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/health"
	"github.com/ItamarWilf/PipeRT/routine"
	"github.com/ItamarWilf/PipeRT/types"
)

// DefaultStopTimeout bounds StopAll when the caller's context has no deadline.
const DefaultStopTimeout = 30 * time.Second

const metricsOwner = "pipeline_manager"

// PipelineManager owns every component of a pipeline and mutates the live
// topology. Operations report their outcome as types.Result values; only
// process-level operations (RunAll, StopAll, Shutdown) return errors.
type PipelineManager struct {
	id     uuid.UUID
	types  *component.Registry
	deps   component.Dependencies
	logger *slog.Logger

	stopTimeout time.Duration
	gauge       prometheus.Gauge

	mu         sync.RWMutex
	components map[string]*component.Component
}

// Option configures a PipelineManager.
type Option func(*PipelineManager)

// WithLogger sets the manager logger. Components keep the logger from their
// dependencies.
func WithLogger(logger *slog.Logger) Option {
	return func(m *PipelineManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStopTimeout bounds StopAll and Shutdown.
func WithStopTimeout(d time.Duration) Option {
	return func(m *PipelineManager) {
		if d > 0 {
			m.stopTimeout = d
		}
	}
}

// NewPipelineManager creates an empty manager. Component types are resolved
// through registry and routine types through deps.Routines.
func NewPipelineManager(registry *component.Registry, deps component.Dependencies, opts ...Option) *PipelineManager {
	if registry == nil {
		registry = component.NewRegistry()
	}
	if deps.Routines == nil {
		deps.Routines = routine.NewRegistry()
	}

	m := &PipelineManager{
		id:          uuid.New(),
		types:       registry,
		deps:        deps,
		logger:      deps.GetLogger(),
		stopTimeout: DefaultStopTimeout,
		components:  make(map[string]*component.Component),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("pipeline", m.id.String())

	if deps.MetricsRegistry != nil {
		m.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pipert",
			Name:      "components",
			Help:      "Number of components owned by the pipeline manager",
		})
		if err := deps.MetricsRegistry.RegisterGauge(metricsOwner, "components", m.gauge); err != nil {
			m.logger.Warn("Components gauge not registered", "error", err)
			m.gauge = nil
		}
	}
	return m
}

// ID identifies this manager instance.
func (m *PipelineManager) ID() string { return m.id.String() }

// SetupComponents builds a whole topology from its declarative form.
//
// When the structure is malformed nothing is created and the response is a
// list of shape violations. Otherwise components are created first, then their
// queues, then their routines. If every step succeeds the response is a single
// successful Result; if some fail it is the list of failed steps and whatever
// succeeded stays in place.
func (m *PipelineManager) SetupComponents(spec map[string]any) types.SetupResponse {
	topo, failures := ParseTopology(spec)
	if failures != nil {
		m.logger.Warn("Topology rejected", "violations", len(failures))
		return types.ListResponse(failures)
	}

	var results []types.Result
	fail := func(r types.Result) {
		if !r.Succeeded {
			results = append(results, r)
		}
	}

	created := make([]string, 0, len(topo.Components))
	for _, name := range topo.ComponentNames() {
		cs := topo.Components[name]
		res := m.CreateComponent(name, cs.UseSharedMemory, cs.TypeName)
		fail(res)
		if !res.Succeeded {
			continue
		}
		created = append(created, name)
		if cs.Mode() != types.DefaultExecutionMode {
			fail(m.ChangeComponentExecutionMode(name, cs.Mode().String()))
		}
	}

	for _, name := range created {
		for _, q := range topo.Components[name].Queues {
			fail(m.CreateQueueToComponent(name, q))
		}
	}

	for _, name := range created {
		cs := topo.Components[name]
		for _, routineName := range cs.RoutineNames() {
			rs := cs.Routines[routineName]
			fail(m.AddRoutineToComponent(name, rs.TypeName, routineName, rs.Args))
		}
	}

	if len(results) > 0 {
		m.logger.Warn("Topology partially applied", "failures", len(results))
		return types.ListResponse(results)
	}

	m.logger.Info("Topology set up", "components", len(created))
	return types.SingleResponse(types.Success("Set up %d components", len(created)))
}

// CreateComponent instantiates a component of typeName, or of the base
// Component type when typeName is empty.
func (m *PipelineManager) CreateComponent(name string, useSharedMemory bool, typeName string) types.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.components[name]; exists {
		return types.Failure("Component %s already exists", name)
	}

	c, err := m.types.Create(typeName, name, m.deps, useSharedMemory)
	if err != nil {
		if errors.Is(err, errors.ErrUnknownType) {
			return types.Failure("Component type %s is not registered", typeName)
		}
		return types.Failure("Failed to create component %s: %v", name, err)
	}

	m.components[name] = c
	m.updateGauge()
	m.logger.Info("Component created", "component", name, "type", c.TypeName(),
		"use_shared_memory", useSharedMemory)
	return types.Success("Component %s created", name)
}

// RemoveComponent stops the component if needed, closes its queues and
// forgets it.
func (m *PipelineManager) RemoveComponent(name string) types.Result {
	m.mu.Lock()
	c, exists := m.components[name]
	if exists {
		delete(m.components, name)
		m.updateGauge()
	}
	m.mu.Unlock()

	if !exists {
		return m.missing(name)
	}
	c.Close()
	m.logger.Info("Component removed", "component", name)
	return types.Success("Component %s removed", name)
}

// CreateQueueToComponent adds a queue to the named component.
func (m *PipelineManager) CreateQueueToComponent(componentName, queueName string) types.Result {
	return m.withComponent(componentName, func(c *component.Component) types.Result {
		return c.CreateQueue(queueName)
	})
}

// RemoveQueueFromComponent removes a queue no routine uses.
func (m *PipelineManager) RemoveQueueFromComponent(componentName, queueName string) types.Result {
	return m.withComponent(componentName, func(c *component.Component) types.Result {
		return c.RemoveQueue(queueName)
	})
}

// AddRoutineToComponent builds a routine of routineType from args and adds it
// to the named component.
func (m *PipelineManager) AddRoutineToComponent(componentName, routineType, routineName string, args map[string]any) types.Result {
	return m.withComponent(componentName, func(c *component.Component) types.Result {
		return c.AddRoutine(routineType, routineName, args)
	})
}

// RemoveRoutineFromComponent stops and removes a routine.
func (m *PipelineManager) RemoveRoutineFromComponent(componentName, routineName string) types.Result {
	return m.withComponent(componentName, func(c *component.Component) types.Result {
		return c.RemoveRoutine(routineName)
	})
}

// RunComponent starts every routine of the named component.
func (m *PipelineManager) RunComponent(name string) types.Result {
	return m.withComponent(name, func(c *component.Component) types.Result {
		return c.Run()
	})
}

// StopComponent stops the named component and waits for its routines.
func (m *PipelineManager) StopComponent(name string) types.Result {
	return m.withComponent(name, func(c *component.Component) types.Result {
		return c.Stop()
	})
}

// ChangeComponentExecutionMode switches the named component to mode.
func (m *PipelineManager) ChangeComponentExecutionMode(name, mode string) types.Result {
	return m.withComponent(name, func(c *component.Component) types.Result {
		return c.ChangeExecutionMode(mode)
	})
}

// UpdateRoutineConfig hands values to a running routine as a live config update.
func (m *PipelineManager) UpdateRoutineConfig(componentName, routineName string, values map[string]any) types.Result {
	return m.withComponent(componentName, func(c *component.Component) types.Result {
		return c.UpdateRoutineConfig(routineName, values)
	})
}

// Component returns the named component.
func (m *PipelineManager) Component(name string) (*component.Component, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.components[name]
	return c, ok
}

// ComponentNames returns all component names in sorted order.
func (m *PipelineManager) ComponentNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status snapshots every component in name order.
func (m *PipelineManager) Status() []component.Status {
	comps := m.snapshot()
	out := make([]component.Status, 0, len(comps))
	for _, c := range comps {
		out = append(out, c.Status())
	}
	return out
}

// Health aggregates the health of every component.
func (m *PipelineManager) Health() health.Status {
	return health.FromPipeline("pipeline", m.Status())
}

// RoutineTypes describes the constructor parameters of every routine type.
func (m *PipelineManager) RoutineTypes() map[string]map[string]routine.ParamType {
	out := make(map[string]map[string]routine.ParamType)
	for _, typeName := range m.deps.Routines.Types() {
		params, err := m.deps.Routines.ConstructorParameters(typeName)
		if err != nil {
			continue
		}
		out[typeName] = params
	}
	return out
}

// ComponentTypes lists the registered component types.
func (m *PipelineManager) ComponentTypes() []string {
	return m.types.Types()
}

// RunAll starts every component that is not running yet.
func (m *PipelineManager) RunAll() error {
	var errs []error
	for _, c := range m.snapshot() {
		if c.IsRunning() {
			continue
		}
		if res := c.Run(); !res.Succeeded {
			errs = append(errs, fmt.Errorf("%s: %s", c.Name(), res.Message))
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every running component concurrently. A stop that outlives
// ctx, or the stop timeout when ctx has no deadline, is reported as an error
// while the stops keep going in the background.
func (m *PipelineManager) StopAll(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.stopTimeout)
		defer cancel()
	}

	var g errgroup.Group
	for _, c := range m.snapshot() {
		if !c.IsRunning() {
			continue
		}
		g.Go(func() error {
			if res := c.Stop(); !res.Succeeded {
				return fmt.Errorf("%s: %s", c.Name(), res.Message)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			m.logger.Warn("Components stopped with errors", "error", err)
		}
		return err
	case <-ctx.Done():
		m.logger.Error("Stopping components timed out", "error", ctx.Err())
		return errors.WrapTransient(ctx.Err(), "PipelineManager", "StopAll", "wait for components")
	}
}

// Shutdown stops every component and removes the ones that finished
// stopping. Components still waiting for a routine when ctx expires are left
// in place and reported in the returned error.
func (m *PipelineManager) Shutdown(ctx context.Context) error {
	err := m.StopAll(ctx)

	var pending []string
	for _, c := range m.snapshot() {
		if c.IsRunning() || c.IsStopping() {
			pending = append(pending, c.Name())
			continue
		}
		m.RemoveComponent(c.Name())
	}
	if len(pending) > 0 {
		m.logger.Warn("Components still stopping, not removed", "components", pending)
		err = errors.Join(err, errors.WrapTransient(
			fmt.Errorf("components still stopping: %s", strings.Join(pending, ", ")),
			"PipelineManager", "Shutdown", "remove components"))
	}
	if m.deps.MetricsRegistry != nil {
		m.deps.MetricsRegistry.UnregisterOwner(metricsOwner)
	}
	return err
}

func (m *PipelineManager) withComponent(name string, fn func(*component.Component) types.Result) types.Result {
	c, ok := m.Component(name)
	if !ok {
		return m.missing(name)
	}
	return fn(c)
}

func (m *PipelineManager) missing(name string) types.Result {
	return types.Failure("Component %s does not exist", name)
}

func (m *PipelineManager) snapshot() []*component.Component {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*component.Component, 0, len(names))
	for _, name := range names {
		out = append(out, m.components[name])
	}
	return out
}

// updateGauge must be called with mu held.
func (m *PipelineManager) updateGauge() {
	if m.gauge != nil {
		m.gauge.Set(float64(len(m.components)))
	}
}
