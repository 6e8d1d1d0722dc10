package routine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ItamarWilf/PipeRT/errors"
)

// ParamType is the human-readable type tag of a constructor parameter.
type ParamType string

// Parameter type tags.
const (
	ParamQueue  ParamType = "Queue"
	ParamString ParamType = "str"
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
)

// NameParameter is inherited by every routine type.
var NameParameter = Parameter{Name: "name", Type: ParamString, Required: true, Description: "Routine name, unique within its component"}

// Parameter describes one constructor argument of a routine type.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Factory builds a routine called name from validated arguments.
type Factory func(name string, args Args) (Routine, error)

// Registration describes a routine type.
type Registration struct {
	Name        string
	Description string
	Parameters  []Parameter
	Factory     Factory
}

// Registry maps routine type names to their factories.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Registration
}

// NewRegistry creates an empty routine type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Registration)}
}

// Register adds a routine type. Names must be unique.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "registration without name")
	}
	if reg.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("routine type %s has no factory", reg.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[reg.Name]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateName, "Registry", "Register",
			fmt.Sprintf("routine type %s", reg.Name))
	}
	r.types[reg.Name] = reg
	return nil
}

// Lookup returns the registration of typeName.
func (r *Registry) Lookup(typeName string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.types[typeName]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrUnknownType, "Registry", "Lookup",
			fmt.Sprintf("routine type %q", typeName))
	}
	return reg, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ConstructorParameters returns every constructor parameter of typeName,
// including the inherited name parameter, mapped to its type tag.
func (r *Registry) ConstructorParameters(typeName string) (map[string]ParamType, error) {
	reg, err := r.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	params := map[string]ParamType{NameParameter.Name: NameParameter.Type}
	for _, p := range reg.Parameters {
		params[p.Name] = p.Type
	}
	return params, nil
}

// Create builds a routine of typeName. Defaults are applied and every declared
// parameter is checked against its type before the factory runs.
func (r *Registry) Create(typeName, name string, args Args) (Routine, error) {
	reg, err := r.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Registry", "Create", "routine name")
	}
	if args.values == nil {
		args = NewArgs(nil, args.queues)
	}

	for _, p := range reg.Parameters {
		args.withDefault(p.Name, p.Default)
		if err := args.check(p); err != nil {
			return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("%s %s", typeName, name))
		}
	}

	rt, err := reg.Factory(name, args)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("%s %s", typeName, name))
	}
	return rt, nil
}
