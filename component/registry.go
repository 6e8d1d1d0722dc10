package component

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ItamarWilf/PipeRT/errors"
)

// Factory creates a component instance. Factories may pre-create queues and
// routines on the returned component; they must not start it.
type Factory func(name string, deps Dependencies, useSharedMemory bool) (*Component, error)

// Registration holds a factory and metadata for a component type.
type Registration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Factory     Factory `json:"-"`
}

// Registry maps component type names to factories. It is safe for concurrent use.
type Registry struct {
	factories map[string]*Registration
	mu        sync.RWMutex
}

// NewRegistry creates a registry holding only the built-in "Component" type.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]*Registration)}
	r.factories[BaseTypeName] = &Registration{
		Name:        BaseTypeName,
		Description: "Empty component with no predefined queues or routines",
		Factory:     newBase,
	}
	return r
}

func newBase(name string, deps Dependencies, useSharedMemory bool) (*Component, error) {
	return New(name, deps, WithSharedMemory(useSharedMemory)), nil
}

// RegisterFactory registers a component type. Names must be unique.
func (r *Registry) RegisterFactory(registration *Registration) error {
	if registration == nil || registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "registration validation")
	}
	if err := ValidateName("component type", registration.Name); err != nil {
		return errors.WrapInvalid(err, "Registry", "RegisterFactory", "type name validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[registration.Name]; exists {
		msg := fmt.Errorf("%w: component type %q", errors.ErrDuplicateName, registration.Name)
		return errors.WrapInvalid(msg, "Registry", "RegisterFactory", "duplicate factory check")
	}
	r.factories[registration.Name] = registration
	return nil
}

// Create builds a component of typeName. An empty typeName selects the
// built-in "Component" type.
func (r *Registry) Create(typeName, name string, deps Dependencies, useSharedMemory bool) (*Component, error) {
	if typeName == "" {
		typeName = BaseTypeName
	}
	if err := ValidateName("component", name); err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "Create", "component name validation")
	}

	r.mu.RLock()
	registration, exists := r.factories[typeName]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("%w: component type %q", errors.ErrUnknownType, typeName)
		return nil, errors.WrapInvalid(msg, "Registry", "Create", "factory lookup")
	}

	c, err := registration.Factory(name, deps, useSharedMemory)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("%s factory", typeName))
	}
	c.typeName = typeName
	return c, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Registration returns the registration for typeName.
func (r *Registry) Registration(typeName string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[typeName]
	return reg, ok
}
