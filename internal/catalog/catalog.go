// Package catalog holds the gateway's tool definitions: the data model for
// a tool's parameter schema, the built-in Jira tool set, and argument
// validation against those schemas.
package catalog

import (
	"fmt"
	"strings"
)

// ParamType is the coarse type of a tool parameter.
type ParamType string

const (
	TypeString      ParamType = "string"
	TypeInteger     ParamType = "integer"
	TypeBoolean     ParamType = "boolean"
	TypeStringArray ParamType = "array"
	TypeObject      ParamType = "object"
)

// Param describes one parameter of a tool.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     interface{}
	Enum        []string // allowed values, string params only
}

// Tool is an immutable tool definition: name, description, and ordered
// parameter schema. Built at startup, never mutated afterwards.
type Tool struct {
	Name        string
	Description string
	Params      []Param
}

// Param returns the parameter with the given name, if declared.
func (t Tool) Param(name string) (Param, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Catalog is a validated, name-indexed set of tool definitions.
type Catalog struct {
	byName  map[string]Tool
	ordered []Tool
}

// validTypes is the set of parameter types the validator understands.
var validTypes = map[ParamType]bool{
	TypeString: true, TypeInteger: true, TypeBoolean: true,
	TypeStringArray: true, TypeObject: true,
}

// New builds a Catalog from tool definitions, rejecting malformed entries.
func New(tools []Tool) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := validateTool(t); err != nil {
			return nil, err
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		c.byName[t.Name] = t
		c.ordered = append(c.ordered, t)
	}
	return c, nil
}

// Lookup returns the tool definition for name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Tools returns the tool definitions in registration order.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// validateTool checks a single tool definition.
func validateTool(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool has empty name")
	}
	seen := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %q has a parameter with empty name", t.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %q declares parameter %q twice", t.Name, p.Name)
		}
		seen[p.Name] = true
		if !validTypes[p.Type] {
			return fmt.Errorf("tool %q parameter %q has unsupported type %q", t.Name, p.Name, p.Type)
		}
		if len(p.Enum) > 0 && p.Type != TypeString {
			return fmt.Errorf("tool %q parameter %q: enum constraint requires string type", t.Name, p.Name)
		}
		if p.Default != nil {
			if err := checkType(p, p.Default); err != nil {
				return fmt.Errorf("tool %q parameter %q: default value: %s", t.Name, p.Name, err.(*ValidationError).Message)
			}
		}
	}
	return nil
}

// describeEnum formats an enum set for error messages.
func describeEnum(values []string) string {
	return strings.Join(values, ", ")
}
