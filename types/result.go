// Package types contains the shared value types of the pipeline API.
package types

import (
	"encoding/json"
	"fmt"
)

// Result is the structured outcome returned by every topology operation.
// Field names are part of the wire contract.
type Result struct {
	Succeeded bool   `json:"Succeeded"`
	Message   string `json:"Message"`
}

// Success builds a successful Result.
func Success(format string, args ...any) Result {
	return Result{Succeeded: true, Message: fmt.Sprintf(format, args...)}
}

// Failure builds a failed Result.
func Failure(format string, args ...any) Result {
	return Result{Succeeded: false, Message: fmt.Sprintf(format, args...)}
}

// FromError converts err into a failed Result, or a successful one when err is nil.
func FromError(err error, successMsg string) Result {
	if err != nil {
		return Result{Succeeded: false, Message: err.Error()}
	}
	return Result{Succeeded: true, Message: successMsg}
}

// Err returns nil for a successful result and an error carrying Message otherwise.
func (r Result) Err() error {
	if r.Succeeded {
		return nil
	}
	return fmt.Errorf("%s", r.Message)
}

// SetupResponse is the outcome of a batch topology operation. It is either a
// single Result or a list of per-item Results; callers tell them apart with
// IsList, and the JSON form is an object or an array accordingly.
type SetupResponse struct {
	single *Result
	list   []Result
}

// SingleResponse wraps one Result.
func SingleResponse(r Result) SetupResponse {
	return SetupResponse{single: &r}
}

// ListResponse wraps per-item Results. A nil slice encodes as an empty array.
func ListResponse(results []Result) SetupResponse {
	if results == nil {
		results = []Result{}
	}
	return SetupResponse{list: results}
}

// IsList reports whether the response is a list of per-item results.
func (s SetupResponse) IsList() bool { return s.single == nil }

// Single returns the single result. ok is false for list responses.
func (s SetupResponse) Single() (Result, bool) {
	if s.single == nil {
		return Result{}, false
	}
	return *s.single, true
}

// List returns the per-item results, or nil for a single response.
func (s SetupResponse) List() []Result { return s.list }

// Succeeded reports overall success: the single result succeeded, or every
// listed item did.
func (s SetupResponse) Succeeded() bool {
	if s.single != nil {
		return s.single.Succeeded
	}
	for _, r := range s.list {
		if !r.Succeeded {
			return false
		}
	}
	return true
}

// MarshalJSON encodes a single response as an object and a list as an array.
func (s SetupResponse) MarshalJSON() ([]byte, error) {
	if s.single != nil {
		return json.Marshal(*s.single)
	}
	if s.list == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.list)
}

// UnmarshalJSON accepts either an object or an array.
func (s *SetupResponse) UnmarshalJSON(data []byte) error {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			var list []Result
			if err := json.Unmarshal(data, &list); err != nil {
				return err
			}
			*s = ListResponse(list)
			return nil
		default:
			var r Result
			if err := json.Unmarshal(data, &r); err != nil {
				return err
			}
			*s = SingleResponse(r)
			return nil
		}
	}
	return fmt.Errorf("empty setup response")
}
