package testutil

import (
	"fmt"

	"github.com/ItamarWilf/PipeRT/component"
)

// DummyComponentType is the component type registered by RegisterDummyComponent.
const DummyComponentType = "DummyComponent"

// DummyComponentQueue is the queue every DummyComponent is created with.
const DummyComponentQueue = "dummy_queue"

// NewDummyComponent creates a component that already owns DummyComponentQueue.
func NewDummyComponent(name string, deps component.Dependencies, useSharedMemory bool) (*component.Component, error) {
	c := component.New(name, deps, component.WithSharedMemory(useSharedMemory))
	if res := c.CreateQueue(DummyComponentQueue); !res.Succeeded {
		return nil, fmt.Errorf("create %s: %s", DummyComponentQueue, res.Message)
	}
	return c, nil
}

// RegisterDummyComponent adds the DummyComponent type to registry.
func RegisterDummyComponent(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        DummyComponentType,
		Description: "Component pre-populated with one queue",
		Factory:     NewDummyComponent,
	})
}

// NewComponentRegistry returns a component registry holding the dummy type.
func NewComponentRegistry() *component.Registry {
	registry := component.NewRegistry()
	if err := RegisterDummyComponent(registry); err != nil {
		panic(err)
	}
	return registry
}

// NewDependencies returns component dependencies backed by the dummy routine registry.
func NewDependencies() component.Dependencies {
	return component.Dependencies{Routines: NewRoutineRegistry()}
}
