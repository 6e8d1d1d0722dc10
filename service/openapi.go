package service

import (
	"net/http"
	"regexp"
)

// HTTPHandler is implemented by anything that serves part of the HTTP API.
type HTTPHandler interface {
	RegisterHTTPHandlers(prefix string, mux *http.ServeMux)
	OpenAPISpec() *OpenAPISpec
}

// OpenAPIDocument represents the complete OpenAPI 3.0 specification
type OpenAPIDocument struct {
	OpenAPI string              `json:"openapi"`
	Info    InfoSpec            `json:"info"`
	Servers []ServerSpec        `json:"servers"`
	Paths   map[string]PathSpec `json:"paths"`
	Tags    []TagSpec           `json:"tags,omitempty"`
}

// OpenAPISpec represents one handler's OpenAPI fragment
type OpenAPISpec struct {
	Paths map[string]PathSpec `json:"paths"`
	Tags  []TagSpec           `json:"tags,omitempty"`
}

// PathSpec defines HTTP operations for a specific path
type PathSpec struct {
	GET    *OperationSpec `json:"get,omitempty"`
	POST   *OperationSpec `json:"post,omitempty"`
	PATCH  *OperationSpec `json:"patch,omitempty"`
	DELETE *OperationSpec `json:"delete,omitempty"`
}

// OperationSpec defines a single HTTP operation
type OperationSpec struct {
	Summary    string                  `json:"summary"`
	Parameters []ParameterSpec         `json:"parameters,omitempty"`
	Responses  map[string]ResponseSpec `json:"responses"`
	Tags       []string                `json:"tags,omitempty"`
}

// ParameterSpec defines an operation parameter
type ParameterSpec struct {
	Name     string `json:"name"`
	In       string `json:"in"`
	Required bool   `json:"required,omitempty"`
	Schema   Schema `json:"schema"`
}

// ResponseSpec defines an operation response
type ResponseSpec struct {
	Description string `json:"description"`
}

// Schema defines a parameter schema
type Schema struct {
	Type string `json:"type"`
}

// InfoSpec contains API metadata
type InfoSpec struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// ServerSpec defines an API server
type ServerSpec struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// TagSpec groups operations
type TagSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var pathParamRegex = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

// NewOpenAPISpec creates an empty fragment
func NewOpenAPISpec() *OpenAPISpec {
	return &OpenAPISpec{Paths: make(map[string]PathSpec)}
}

// AddOperation documents method on path. Path parameters written as {name}
// are declared automatically.
func (spec *OpenAPISpec) AddOperation(method, path, summary, tag string) {
	op := &OperationSpec{
		Summary: summary,
		Tags:    []string{tag},
		Responses: map[string]ResponseSpec{
			"200": {Description: "Succeeded"},
			"400": {Description: "Failed, see Message"},
		},
	}
	params := pathParamRegex.FindAllStringSubmatch(path, -1)
	if len(params) > 0 {
		op.Responses["404"] = ResponseSpec{Description: "Component not found"}
	}
	for _, m := range params {
		op.Parameters = append(op.Parameters, ParameterSpec{
			Name: m[1], In: "path", Required: true, Schema: Schema{Type: "string"},
		})
	}

	ps := spec.Paths[path]
	switch method {
	case http.MethodGet:
		ps.GET = op
	case http.MethodPost:
		ps.POST = op
	case http.MethodPatch:
		ps.PATCH = op
	case http.MethodDelete:
		ps.DELETE = op
	}
	spec.Paths[path] = ps
}

// AddTag adds a tag to the fragment
func (spec *OpenAPISpec) AddTag(name, description string) {
	spec.Tags = append(spec.Tags, TagSpec{Name: name, Description: description})
}

// NewOpenAPIDocument merges the fragment of every handler, each mounted under
// its prefix.
func NewOpenAPIDocument(info InfoSpec, serverURL string, handlers map[string]HTTPHandler) *OpenAPIDocument {
	doc := &OpenAPIDocument{
		OpenAPI: "3.0.0",
		Info:    info,
		Servers: []ServerSpec{{URL: serverURL, Description: "PipeRT server"}},
		Paths:   make(map[string]PathSpec),
	}
	for prefix, handler := range handlers {
		spec := handler.OpenAPISpec()
		if spec == nil {
			continue
		}
		for path, ps := range spec.Paths {
			doc.Paths[prefix+path] = ps
		}
		doc.Tags = append(doc.Tags, spec.Tags...)
	}
	return doc
}
