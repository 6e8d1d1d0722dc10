package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/types"
)

// Topology field names.
const (
	FieldComponents        = "components"
	FieldQueues            = "queues"
	FieldRoutines          = "routines"
	FieldExecutionMode     = "execution_mode"
	FieldComponentTypeName = "component_type_name"
	FieldUseSharedMemory   = "use_shared_memory"
	FieldRoutineTypeName   = "routine_type_name"
)

// topologySchema is the shape every declarative topology must have before any
// component is created.
const topologySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["components"],
  "properties": {
    "components": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["queues", "routines"],
        "additionalProperties": false,
        "properties": {
          "queues": {"type": "array", "items": {"type": "string"}},
          "execution_mode": {"type": "string", "enum": ["thread", "process"]},
          "component_type_name": {"type": "string"},
          "use_shared_memory": {"type": "boolean"},
          "routines": {
            "type": "object",
            "additionalProperties": {
              "type": "object",
              "required": ["routine_type_name"],
              "properties": {
                "routine_type_name": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(topologySchema))
})

// Topology is a validated declarative pipeline structure.
type Topology struct {
	Components map[string]ComponentSpec `json:"components"`
}

// ComponentSpec declares one component.
type ComponentSpec struct {
	Queues          []string               `json:"queues"`
	ExecutionMode   types.ExecutionMode    `json:"execution_mode,omitempty"`
	TypeName        string                 `json:"component_type_name,omitempty"`
	UseSharedMemory bool                   `json:"use_shared_memory,omitempty"`
	Routines        map[string]RoutineSpec `json:"routines"`
}

// RoutineSpec declares one routine: its type name plus constructor arguments.
type RoutineSpec struct {
	TypeName string
	Args     map[string]any
}

// UnmarshalJSON splits routine_type_name from the constructor arguments.
func (r *RoutineSpec) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typeName, _ := raw[FieldRoutineTypeName].(string)
	delete(raw, FieldRoutineTypeName)
	r.TypeName = typeName
	r.Args = raw
	return nil
}

// MarshalJSON writes the routine back in its flat declarative form.
func (r RoutineSpec) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Args)+1)
	for k, v := range r.Args {
		flat[k] = v
	}
	flat[FieldRoutineTypeName] = r.TypeName
	return json.Marshal(flat)
}

// ComponentNames returns the declared component names in sorted order.
func (t *Topology) ComponentNames() []string {
	names := make([]string, 0, len(t.Components))
	for name := range t.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoutineNames returns the routines of a component in sorted order.
func (c ComponentSpec) RoutineNames() []string {
	names := make([]string, 0, len(c.Routines))
	for name := range c.Routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mode returns the declared execution mode, or the default when none is set.
func (c ComponentSpec) Mode() types.ExecutionMode {
	if c.ExecutionMode == "" {
		return types.DefaultExecutionMode
	}
	return c.ExecutionMode
}

// ValidateTopology checks the shape of spec. It returns one failed Result per
// violation, or nil when the structure is well formed.
func ValidateTopology(spec map[string]any) []types.Result {
	if spec == nil {
		return []types.Result{types.Failure("topology is empty: %s is required", FieldComponents)}
	}

	schema, err := compiledSchema()
	if err != nil {
		return []types.Result{types.Failure("topology schema: %v", err)}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(spec))
	if err != nil {
		return []types.Result{types.Failure("topology is not valid JSON data: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	failures := make([]types.Result, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		failures = append(failures, types.Failure("%s: %s", desc.Field(), desc.Description()))
	}
	return failures
}

// ParseTopology validates spec and decodes it into a Topology. On a shape
// violation the per-item failures are returned and the Topology is nil.
func ParseTopology(spec map[string]any) (*Topology, []types.Result) {
	if failures := ValidateTopology(spec); failures != nil {
		return nil, failures
	}

	data, err := json.Marshal(spec)
	if err != nil {
		return nil, []types.Result{types.FromError(
			errors.WrapInvalid(err, "PipelineManager", "ParseTopology", "encode topology"), "")}
	}

	var topo Topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, []types.Result{types.FromError(
			errors.WrapInvalid(err, "PipelineManager", "ParseTopology", "decode topology"), "")}
	}
	if topo.Components == nil {
		topo.Components = make(map[string]ComponentSpec)
	}
	return &topo, nil
}

// TopologyFromJSON parses a declarative topology from JSON text.
func TopologyFromJSON(data []byte) (map[string]any, error) {
	var spec map[string]any
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"PipelineManager", "TopologyFromJSON", "parse topology")
	}
	return spec, nil
}
