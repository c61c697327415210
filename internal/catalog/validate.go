package catalog

import (
	"fmt"
	"math"
)

// Validation rule identifiers reported in ValidationError.Rule.
const (
	RuleMissing   = "missing"
	RuleUnknown   = "unknown"
	RuleWrongType = "wrong-type"
	RuleNotInEnum = "not-in-enum"
)

// ValidationError reports a single argument-validation failure: the
// offending parameter and which rule it violated.
type ValidationError struct {
	Param   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Message)
}

// ValidateArgs checks supplied arguments against a tool's parameter schema
// and returns a normalized argument map with defaults applied. It is a pure
// function: no I/O, no mutation of the input map.
//
// Checks, in order per parameter: every supplied name is declared, every
// required name is present, coarse types match, enum membership holds.
func ValidateArgs(t Tool, args map[string]interface{}) (map[string]interface{}, error) {
	for name := range args {
		if _, ok := t.Param(name); !ok {
			return nil, &ValidationError{
				Param:   name,
				Rule:    RuleUnknown,
				Message: fmt.Sprintf("not declared by tool %q", t.Name),
			}
		}
	}

	normalized := make(map[string]interface{}, len(t.Params))
	for _, p := range t.Params {
		raw, supplied := args[p.Name]
		if !supplied {
			if p.Default != nil {
				normalized[p.Name] = p.Default
				continue
			}
			if p.Required {
				return nil, &ValidationError{
					Param:   p.Name,
					Rule:    RuleMissing,
					Message: "required parameter is missing",
				}
			}
			continue
		}
		if err := checkType(p, raw); err != nil {
			return nil, err
		}
		normalized[p.Name] = coerce(p, raw)
	}
	return normalized, nil
}

// checkType verifies that a value's coarse type matches the declared one.
func checkType(p Param, v interface{}) error {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return wrongType(p, "string", v)
		}
		if len(p.Enum) > 0 && !enumContains(p.Enum, s) {
			return &ValidationError{
				Param:   p.Name,
				Rule:    RuleNotInEnum,
				Message: fmt.Sprintf("value %q not in allowed set [%s]", s, describeEnum(p.Enum)),
			}
		}
	case TypeInteger:
		switch n := v.(type) {
		case int, int32, int64:
		case float64:
			// JSON numbers decode as float64; accept integral values only.
			if n != math.Trunc(n) {
				return wrongType(p, "integer", v)
			}
		default:
			return wrongType(p, "integer", v)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return wrongType(p, "boolean", v)
		}
	case TypeStringArray:
		switch arr := v.(type) {
		case []string:
		case []interface{}:
			for _, item := range arr {
				if _, ok := item.(string); !ok {
					return wrongType(p, "array of strings", v)
				}
			}
		default:
			return wrongType(p, "array of strings", v)
		}
	case TypeObject:
		if _, ok := v.(map[string]interface{}); !ok {
			return wrongType(p, "object", v)
		}
	}
	return nil
}

// coerce normalizes an accepted value to the canonical Go type for its
// declared parameter type: int for integers, []string for arrays.
func coerce(p Param, v interface{}) interface{} {
	switch p.Type {
	case TypeInteger:
		switch n := v.(type) {
		case int:
			return n
		case int32:
			return int(n)
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	case TypeStringArray:
		switch arr := v.(type) {
		case []string:
			out := make([]string, len(arr))
			copy(out, arr)
			return out
		case []interface{}:
			out := make([]string, 0, len(arr))
			for _, item := range arr {
				out = append(out, item.(string))
			}
			return out
		}
	}
	return v
}

func wrongType(p Param, want string, got interface{}) error {
	return &ValidationError{
		Param:   p.Name,
		Rule:    RuleWrongType,
		Message: fmt.Sprintf("expected %s, got %T", want, got),
	}
}

// enumContains reports whether the enum set contains the value.
// Enum comparison is exact: tool argument enums are display values.
func enumContains(enum []string, s string) bool {
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}

// StringArg returns a normalized string argument, empty when absent.
func StringArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

// IntArg returns a normalized integer argument, 0 when absent.
func IntArg(args map[string]interface{}, name string) int {
	if v, ok := args[name].(int); ok {
		return v
	}
	return 0
}

// BoolArg returns a normalized boolean argument, false when absent.
func BoolArg(args map[string]interface{}, name string) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return false
}

// StringsArg returns a normalized string-array argument, nil when absent.
func StringsArg(args map[string]interface{}, name string) []string {
	if v, ok := args[name].([]string); ok {
		return v
	}
	return nil
}

// HasArg reports whether the normalized argument map carries a value for
// name. Used by update-style tools that only touch supplied fields.
func HasArg(args map[string]interface{}, name string) bool {
	_, ok := args[name]
	return ok
}
