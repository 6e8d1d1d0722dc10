package types

import (
	"fmt"
	"strings"

	"github.com/ItamarWilf/PipeRT/errors"
)

// ExecutionMode selects how a component's routines are scheduled.
type ExecutionMode string

const (
	// ModeThread runs each routine on a goroutine sharing the Go scheduler.
	ModeThread ExecutionMode = "thread"
	// ModeProcess runs each routine on its own dedicated OS thread with an
	// isolated failure boundary.
	ModeProcess ExecutionMode = "process"
)

// DefaultExecutionMode is used when a topology omits execution_mode.
const DefaultExecutionMode = ModeThread

// ExecutionModes lists every accepted mode.
var ExecutionModes = []ExecutionMode{ModeThread, ModeProcess}

// ParseExecutionMode converts a mode string, case-insensitively.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeThread:
		return ModeThread, nil
	case ModeProcess:
		return ModeProcess, nil
	default:
		return "", errors.WrapInvalid(errors.ErrUnknownExecutionMode, "types", "ParseExecutionMode",
			fmt.Sprintf("mode %q (expected thread or process)", s))
	}
}

// IsValid reports whether m is a known execution mode.
func (m ExecutionMode) IsValid() bool {
	return m == ModeThread || m == ModeProcess
}

func (m ExecutionMode) String() string { return string(m) }
