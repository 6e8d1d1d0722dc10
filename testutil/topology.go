package testutil

// TopologyBuilder assembles the declarative structure accepted by
// PipelineManager.SetupComponents.
type TopologyBuilder struct {
	components map[string]any
}

// ComponentBuilder adds fields to one component of a TopologyBuilder.
type ComponentBuilder struct {
	parent *TopologyBuilder
	spec   map[string]any
}

// NewTopology starts an empty topology.
func NewTopology() *TopologyBuilder {
	return &TopologyBuilder{components: make(map[string]any)}
}

// Component adds a component with no queues and no routines.
func (b *TopologyBuilder) Component(name string) *ComponentBuilder {
	spec := map[string]any{
		"queues":   []any{},
		"routines": map[string]any{},
	}
	b.components[name] = spec
	return &ComponentBuilder{parent: b, spec: spec}
}

// Build returns the topology structure.
func (b *TopologyBuilder) Build() map[string]any {
	return map[string]any{"components": b.components}
}

// Queues appends queue names.
func (c *ComponentBuilder) Queues(names ...string) *ComponentBuilder {
	queues := c.spec["queues"].([]any)
	for _, n := range names {
		queues = append(queues, n)
	}
	c.spec["queues"] = queues
	return c
}

// Mode sets execution_mode.
func (c *ComponentBuilder) Mode(mode string) *ComponentBuilder {
	c.spec["execution_mode"] = mode
	return c
}

// Type sets component_type_name.
func (c *ComponentBuilder) Type(typeName string) *ComponentBuilder {
	c.spec["component_type_name"] = typeName
	return c
}

// Routine adds a routine of typeName with constructor args.
func (c *ComponentBuilder) Routine(name, typeName string, args map[string]any) *ComponentBuilder {
	spec := map[string]any{"routine_type_name": typeName}
	for k, v := range args {
		spec[k] = v
	}
	c.spec["routines"].(map[string]any)[name] = spec
	return c
}

// Without removes a field, producing a malformed component.
func (c *ComponentBuilder) Without(field string) *ComponentBuilder {
	delete(c.spec, field)
	return c
}

// Set writes an arbitrary field.
func (c *ComponentBuilder) Set(field string, value any) *ComponentBuilder {
	c.spec[field] = value
	return c
}

// Done returns to the topology.
func (c *ComponentBuilder) Done() *TopologyBuilder {
	return c.parent
}

// TwoComponentTopology returns a valid topology: comp1 runs in process mode
// with one queue and two routines, one of them on the queue; comp2 is a
// DummyComponent with its own queue and one routine.
func TwoComponentTopology() map[string]any {
	return NewTopology().
		Component("comp1").
		Queues("que1").
		Mode("process").
		Routine("rout1", DummyRoutineWithQueueType, map[string]any{"queue": "que1"}).
		Routine("rout2", DummyRoutineType, nil).
		Done().
		Component("comp2").
		Type(DummyComponentType).
		Queues("que1").
		Routine("rout1", DummyRoutineType, nil).
		Done().
		Build()
}

// SingleComponentTopology returns a topology with one empty component named name.
func SingleComponentTopology(name string) map[string]any {
	return NewTopology().Component(name).Done().Build()
}
