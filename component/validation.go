package component

import (
	"fmt"
	"strings"

	"github.com/ItamarWilf/PipeRT/errors"
)

// Limits applied to names and routine arguments.
const (
	MaxStringLength = 1024
	MaxArgsDepth    = 10
	MaxArraySize    = 1000
)

// ValidateName checks a component, queue or routine name. Names are
// non-empty and limited to letters, digits, dash and underscore. The dot is
// reserved as the separator of metric owners such as "<component>.<queue>".
func ValidateName(kind, name string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "component", "ValidateName",
			fmt.Sprintf("empty %s name", kind))
	}
	if len(name) > MaxStringLength {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "component", "ValidateName",
			fmt.Sprintf("%s name too long", kind))
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_') {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "component", "ValidateName",
				fmt.Sprintf("invalid characters in %s name %q", kind, name))
		}
	}
	return nil
}

// ArgsValidator bounds the shape of routine constructor arguments coming from
// declarative topologies.
type ArgsValidator struct {
	maxDepth     int
	maxArraySize int
	maxStringLen int
}

// NewArgsValidator creates a validator with the package limits.
func NewArgsValidator() *ArgsValidator {
	return &ArgsValidator{
		maxDepth:     MaxArgsDepth,
		maxArraySize: MaxArraySize,
		maxStringLen: MaxStringLength,
	}
}

// Validate checks every argument value.
func (v *ArgsValidator) Validate(args map[string]any) error {
	for key, val := range args {
		if err := v.validateString(key); err != nil {
			return errors.Wrap(err, "ArgsValidator", "Validate", "key "+key)
		}
		if err := v.validateValue(val, 1); err != nil {
			return errors.Wrap(err, "ArgsValidator", "Validate", "argument "+key)
		}
	}
	return nil
}

func (v *ArgsValidator) validateValue(value any, depth int) error {
	if depth > v.maxDepth {
		return errors.WrapInvalid(
			fmt.Errorf("depth %d exceeds maximum %d", depth, v.maxDepth),
			"ArgsValidator", "validateValue", "depth check")
	}

	switch val := value.(type) {
	case string:
		return v.validateString(val)

	case []any:
		if len(val) > v.maxArraySize {
			return errors.WrapInvalid(
				fmt.Errorf("array size %d exceeds maximum %d", len(val), v.maxArraySize),
				"ArgsValidator", "validateValue", "array size check")
		}
		for i, elem := range val {
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ArgsValidator", "validateValue", fmt.Sprintf("element %d", i))
			}
		}

	case []string:
		for _, s := range val {
			if err := v.validateString(s); err != nil {
				return err
			}
		}

	case map[string]any:
		for key, elem := range val {
			if err := v.validateString(key); err != nil {
				return err
			}
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ArgsValidator", "validateValue", "field "+key)
			}
		}

	case bool, nil, int, int32, int64, uint64, float32, float64:

	default:
		return errors.WrapInvalid(
			fmt.Errorf("unexpected type %T", value),
			"ArgsValidator", "validateValue", "type check")
	}
	return nil
}

func (v *ArgsValidator) validateString(s string) error {
	if len(s) > v.maxStringLen {
		return errors.WrapInvalid(
			fmt.Errorf("string length %d exceeds maximum %d", len(s), v.maxStringLen),
			"ArgsValidator", "validateString", "length check")
	}
	if strings.ContainsRune(s, 0) {
		return errors.WrapInvalid(errors.ErrInvalidData, "ArgsValidator", "validateString", "null byte check")
	}
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return errors.WrapInvalid(
				fmt.Errorf("control character 0x%02x", r),
				"ArgsValidator", "validateString", "control character check")
		}
	}
	return nil
}
