package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ItamarWilf/PipeRT/types"
)

// maxBodyBytes bounds request bodies of the manager API.
const maxBodyBytes = 1 << 20

var _ HTTPHandler = (*PipelineManager)(nil)

type route struct {
	method  string
	path    string
	summary string
	tag     string
	handler http.HandlerFunc
}

func (m *PipelineManager) routes() []route {
	return []route{
		{http.MethodGet, "/health", "Aggregated component health", "Pipeline", m.handleHealth},
		{http.MethodPost, "/setup", "Build a topology from its declarative form", "Pipeline", m.handleSetup},
		{http.MethodGet, "/types", "Registered component and routine types", "Pipeline", m.handleTypes},
		{http.MethodGet, "/routines/types", "Constructor parameters of every routine type", "Routines", m.handleRoutineTypes},
		{http.MethodGet, "/components", "Status of every component", "Components", m.handleListComponents},
		{http.MethodGet, "/components/{name}", "Status of one component", "Components", m.handleGetComponent},
		{http.MethodPost, "/components/{name}", "Create a component", "Components", m.handleCreateComponent},
		{http.MethodDelete, "/components/{name}", "Stop and remove a component", "Components", m.handleRemoveComponent},
		{http.MethodPost, "/components/{name}/run", "Run a component", "Components", m.handleRunComponent},
		{http.MethodPost, "/components/{name}/stop", "Stop a component", "Components", m.handleStopComponent},
		{http.MethodPost, "/components/{name}/mode", "Change the execution mode of a component", "Components", m.handleChangeMode},
		{http.MethodPost, "/components/{name}/queues/{queue}", "Create a queue", "Queues", m.handleCreateQueue},
		{http.MethodDelete, "/components/{name}/queues/{queue}", "Remove an unused queue", "Queues", m.handleRemoveQueue},
		{http.MethodPost, "/components/{name}/routines/{routine}", "Add a routine", "Routines", m.handleAddRoutine},
		{http.MethodDelete, "/components/{name}/routines/{routine}", "Remove a routine", "Routines", m.handleRemoveRoutine},
		{http.MethodPatch, "/components/{name}/routines/{routine}/config", "Send a live config update to a routine", "Routines", m.handleUpdateRoutineConfig},
	}
}

// RegisterHTTPHandlers mounts the manager API under prefix.
func (m *PipelineManager) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	prefix = strings.TrimSuffix(prefix, "/")
	for _, rt := range m.routes() {
		mux.HandleFunc(rt.method+" "+prefix+rt.path, rt.handler)
	}
	m.logger.Info("PipelineManager HTTP handlers registered", "prefix", prefix)
}

// OpenAPISpec documents the manager API relative to its prefix.
func (m *PipelineManager) OpenAPISpec() *OpenAPISpec {
	spec := NewOpenAPISpec()
	for _, rt := range m.routes() {
		spec.AddOperation(rt.method, rt.path, rt.summary, rt.tag)
	}
	spec.AddTag("Pipeline", "Topology setup and health")
	spec.AddTag("Components", "Component lifecycle")
	spec.AddTag("Queues", "Component queues")
	spec.AddTag("Routines", "Component routines")
	return spec
}

func (m *PipelineManager) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := m.Health()
	status := http.StatusOK
	if st.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}
	m.writeJSON(w, status, st)
}

func (m *PipelineManager) handleSetup(w http.ResponseWriter, r *http.Request) {
	var spec map[string]any
	if !m.decodeBody(w, r, &spec, false) {
		return
	}
	resp := m.SetupComponents(spec)
	status := http.StatusOK
	if !resp.Succeeded() {
		status = http.StatusBadRequest
	}
	m.writeJSON(w, status, resp)
}

func (m *PipelineManager) handleTypes(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, http.StatusOK, map[string]any{
		"components": m.ComponentTypes(),
		"routines":   m.RoutineTypes(),
	})
}

func (m *PipelineManager) handleRoutineTypes(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, http.StatusOK, m.RoutineTypes())
}

func (m *PipelineManager) handleListComponents(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, http.StatusOK, m.Status())
}

func (m *PipelineManager) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	c, ok := m.Component(name)
	if !ok {
		m.writeJSON(w, http.StatusNotFound, m.missing(name))
		return
	}
	m.writeJSON(w, http.StatusOK, c.Status())
}

// createComponentRequest is the optional body of POST components/{name}.
type createComponentRequest struct {
	TypeName        string `json:"component_type_name"`
	UseSharedMemory bool   `json:"use_shared_memory"`
}

func (m *PipelineManager) handleCreateComponent(w http.ResponseWriter, r *http.Request) {
	var req createComponentRequest
	if !m.decodeBody(w, r, &req, true) {
		return
	}
	m.writeResult(w, m.CreateComponent(r.PathValue("name"), req.UseSharedMemory, req.TypeName))
}

func (m *PipelineManager) handleRemoveComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	m.writeComponentResult(w, name, func() types.Result { return m.RemoveComponent(name) })
}

func (m *PipelineManager) handleRunComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	m.writeComponentResult(w, name, func() types.Result { return m.RunComponent(name) })
}

func (m *PipelineManager) handleStopComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	m.writeComponentResult(w, name, func() types.Result { return m.StopComponent(name) })
}

// changeModeRequest is the body of POST components/{name}/mode.
type changeModeRequest struct {
	ExecutionMode string `json:"execution_mode"`
}

func (m *PipelineManager) handleChangeMode(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !m.requireComponent(w, name) {
		return
	}
	var req changeModeRequest
	if !m.decodeBody(w, r, &req, false) {
		return
	}
	m.writeResult(w, m.ChangeComponentExecutionMode(name, req.ExecutionMode))
}

func (m *PipelineManager) handleCreateQueue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	m.writeComponentResult(w, name, func() types.Result {
		return m.CreateQueueToComponent(name, r.PathValue("queue"))
	})
}

func (m *PipelineManager) handleRemoveQueue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	m.writeComponentResult(w, name, func() types.Result {
		return m.RemoveQueueFromComponent(name, r.PathValue("queue"))
	})
}

// handleAddRoutine takes the routine declaration in its topology form:
// routine_type_name plus constructor arguments.
func (m *PipelineManager) handleAddRoutine(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !m.requireComponent(w, name) {
		return
	}
	var spec RoutineSpec
	if !m.decodeBody(w, r, &spec, false) {
		return
	}
	if spec.TypeName == "" {
		m.writeResult(w, types.Failure("%s is required", FieldRoutineTypeName))
		return
	}
	m.writeResult(w, m.AddRoutineToComponent(name, spec.TypeName, r.PathValue("routine"), spec.Args))
}

func (m *PipelineManager) handleRemoveRoutine(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	m.writeComponentResult(w, name, func() types.Result {
		return m.RemoveRoutineFromComponent(name, r.PathValue("routine"))
	})
}

func (m *PipelineManager) handleUpdateRoutineConfig(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !m.requireComponent(w, name) {
		return
	}
	var values map[string]any
	if !m.decodeBody(w, r, &values, false) {
		return
	}
	m.writeResult(w, m.UpdateRoutineConfig(name, r.PathValue("routine"), values))
}

// requireComponent answers 404 and returns false when name is unknown.
func (m *PipelineManager) requireComponent(w http.ResponseWriter, name string) bool {
	if _, ok := m.Component(name); !ok {
		m.writeJSON(w, http.StatusNotFound, m.missing(name))
		return false
	}
	return true
}

func (m *PipelineManager) writeComponentResult(w http.ResponseWriter, name string, op func() types.Result) {
	if m.requireComponent(w, name) {
		m.writeResult(w, op())
	}
}

// decodeBody reads a JSON body into v. An empty body is accepted when optional.
// On failure the response has already been written.
func (m *PipelineManager) decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	if r.Body == nil || r.ContentLength == 0 {
		if optional {
			return true
		}
		m.writeResult(w, types.Failure("request body is required"))
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		m.writeResult(w, types.Failure("invalid JSON body: %v", err))
		return false
	}
	return true
}

func (m *PipelineManager) writeResult(w http.ResponseWriter, res types.Result) {
	status := http.StatusOK
	if !res.Succeeded {
		status = http.StatusBadRequest
	}
	m.writeJSON(w, status, res)
}

func (m *PipelineManager) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Error("Failed to encode response", "error", err, "type", fmt.Sprintf("%T", v))
	}
}
