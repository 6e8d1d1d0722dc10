// Package errors provides standardized error handling for PipeRT.
//
// # Error Classification
//
// Errors fall into three classes:
//
//   - Transient: connection timeouts and temporary unavailability of an external
//     collaborator (Redis, NATS). Transport routines retry these during setup.
//   - Invalid: malformed topology structures, unknown type names, unknown execution
//     modes, duplicate names and dangling queue references. These never escape the
//     Component or PipelineManager boundary as faults; they are returned as
//     types.Result values with Succeeded=false.
//   - Fatal: setup failures and panics inside a routine. They end that routine's run,
//     are logged, and leave sibling routines untouched.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format
//
//	"component.method: action failed: %w"
//
// via Wrap, WrapInvalid, WrapFatal and WrapTransient:
//
//	if _, exists := c.queues[name]; exists {
//	    return errors.WrapInvalid(errors.ErrDuplicateName, "Component", "CreateQueue", "name check")
//	}
//
// The wrappers preserve errors.Is / errors.As behaviour for the sentinel variables.
package errors
