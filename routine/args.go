package routine

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/queue"
)

// QueueResolver looks up a queue by name in the owning component.
type QueueResolver func(name string) (*queue.Queue, bool)

// Args are the constructor arguments of a routine, as found in a declarative
// topology. Queue-typed arguments hold queue names that are resolved against
// the owning component.
type Args struct {
	values map[string]any
	queues QueueResolver
}

// NewArgs wraps raw argument values. resolver may be nil when no queue
// arguments are used.
func NewArgs(values map[string]any, resolver QueueResolver) Args {
	if resolver == nil {
		resolver = func(string) (*queue.Queue, bool) { return nil, false }
	}
	cloned := maps.Clone(values)
	if cloned == nil {
		cloned = make(map[string]any)
	}
	return Args{values: cloned, queues: resolver}
}

// Has reports whether key was supplied.
func (a Args) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Raw returns the unconverted value of key.
func (a Args) Raw(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Keys returns the supplied argument names.
func (a Args) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	return keys
}

func (a Args) withDefault(key string, value any) {
	if _, ok := a.values[key]; !ok && value != nil {
		a.values[key] = value
	}
}

// Queue resolves the queue named by key.
func (a Args) Queue(key string) (*queue.Queue, error) {
	name, ok := a.values[key].(string)
	if !ok || name == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingQueue, "Args", "Queue",
			fmt.Sprintf("argument %q does not name a queue", key))
	}
	q, ok := a.queues(name)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrMissingQueue, "Args", "Queue",
			fmt.Sprintf("queue %q for argument %q", name, key))
	}
	return q, nil
}

// QueueName returns the queue name held by key without resolving it.
func (a Args) QueueName(key string) string {
	name, _ := a.values[key].(string)
	return name
}

// String returns key as a string, or "" if absent.
func (a Args) String(key string) string {
	switch v := a.values[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns key as an int, or 0 if absent or not numeric.
func (a Args) Int(key string) int {
	n, _ := toInt(a.values[key])
	return n
}

// Float returns key as a float64, or 0 if absent or not numeric.
func (a Args) Float(key string) float64 {
	f, _ := toFloat(a.values[key])
	return f
}

// Bool returns key as a bool, or false if absent.
func (a Args) Bool(key string) bool {
	b, _ := toBool(a.values[key])
	return b
}

// Duration returns key as a duration. Numbers are seconds; strings use
// time.ParseDuration syntax.
func (a Args) Duration(key string) time.Duration {
	switch v := a.values[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	case time.Duration:
		return v
	default:
		if f, ok := toFloat(v); ok {
			return time.Duration(f * float64(time.Second))
		}
	}
	return 0
}

// check verifies that the value of p, if present, converts to its type.
func (a Args) check(p Parameter) error {
	v, ok := a.values[p.Name]
	if !ok || v == nil {
		if p.Required {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Args", "check",
				fmt.Sprintf("required parameter %q", p.Name))
		}
		return nil
	}

	var valid bool
	switch p.Type {
	case ParamQueue:
		if _, err := a.Queue(p.Name); err != nil {
			return err
		}
		valid = true
	case ParamString:
		_, valid = v.(string)
	case ParamInt:
		_, valid = toInt(v)
	case ParamFloat:
		_, valid = toFloat(v)
	case ParamBool:
		_, valid = toBool(v)
	default:
		valid = true
	}
	if !valid {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Args", "check",
			fmt.Sprintf("parameter %q expects %s, got %T", p.Name, p.Type, v))
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}
