// Package schema turns tool descriptors into runtime validation contracts.
//
// A contract is an ordered list of fields, each bound to a validator drawn from
// a closed set of primitive kinds. Nothing is generated or reflected from Go
// types; the field list is assembled from the descriptor at refresh time.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"toolhub/internal/domain"
)

type field struct {
	spec     domain.ParameterSpec
	validate validator
}

// Contract validates argument bundles for a single tool.
type Contract struct {
	tool        string
	description string
	fields      []field
}

var _ domain.Contract = (*Contract)(nil)

// CheckDescriptor rejects descriptors that cannot be compiled.
func CheckDescriptor(desc domain.ToolDescriptor) error {
	var problems []string
	if strings.TrimSpace(desc.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(desc.Endpoint) == "" {
		problems = append(problems, "endpoint is required")
	}
	if desc.IsLocal() && desc.LocalHandlerName() == "" {
		problems = append(problems, "local endpoint must name a handler")
	}
	declared := make(map[string]struct{}, len(desc.Parameters))
	for i, param := range desc.Parameters {
		if strings.TrimSpace(param.Name) == "" {
			problems = append(problems, fmt.Sprintf("parameters[%d]: name is required", i))
			continue
		}
		if _, dup := declared[param.Name]; dup {
			problems = append(problems, fmt.Sprintf("parameters[%d]: duplicate name %q", i, param.Name))
			continue
		}
		declared[param.Name] = struct{}{}
	}
	for _, key := range desc.Cache.KeyBy {
		if _, ok := declared[key]; !ok {
			problems = append(problems, fmt.Sprintf("cache rule names undeclared parameter %q", key))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &domain.SchemaError{
		Provider: desc.Provider,
		Tool:     desc.Name,
		Index:    -1,
		Err:      errors.New(strings.Join(problems, "; ")),
	}
}

// Compile builds the contract for desc. It fails only for structurally
// invalid descriptors; unknown parameter types are validated as strings.
func Compile(desc domain.ToolDescriptor) (*Contract, error) {
	if err := CheckDescriptor(desc); err != nil {
		return nil, err
	}
	c := &Contract{
		tool:        desc.Name,
		description: desc.Description,
		fields:      make([]field, 0, len(desc.Parameters)),
	}
	for _, param := range desc.Parameters {
		c.fields = append(c.fields, field{
			spec:     param,
			validate: validatorFor(param.Type),
		})
	}
	return c, nil
}

// Validate checks args against every declared parameter. Undeclared arguments
// are dropped from the returned bundle.
func (c *Contract) Validate(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(c.fields))
	var issues []domain.FieldIssue
	for _, f := range c.fields {
		raw, ok := args[f.spec.Name]
		if !ok {
			issues = append(issues, domain.FieldIssue{Param: f.spec.Name, Reason: "missing required parameter"})
			continue
		}
		value, err := f.validate(raw)
		if err != nil {
			issues = append(issues, domain.FieldIssue{Param: f.spec.Name, Reason: err.Error()})
			continue
		}
		out[f.spec.Name] = value
	}
	if len(issues) > 0 {
		return nil, &domain.ValidationError{Tool: c.tool, Issues: issues}
	}
	return out, nil
}

// Fields describes the contract in declaration order.
func (c *Contract) Fields() []domain.ParameterSpec {
	out := make([]domain.ParameterSpec, len(c.fields))
	for i, f := range c.fields {
		out[i] = f.spec
	}
	return out
}

// InputSchema returns a fresh JSON Schema rendering of the contract.
func (c *Contract) InputSchema() *jsonschema.Schema {
	return buildInputSchema(c.description, c.fields)
}

var jsonSchemaTypes = map[domain.ParamType]string{
	domain.ParamString:  "string",
	domain.ParamInteger: "integer",
	domain.ParamFloat:   "number",
	domain.ParamBoolean: "boolean",
	domain.ParamList:    "array",
	domain.ParamMapping: "object",
}

func buildInputSchema(description string, fields []field) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:        "object",
		Description: description,
		Properties:  make(map[string]*jsonschema.Schema, len(fields)),
		Required:    make([]string, 0, len(fields)),
	}
	for _, f := range fields {
		typ, ok := jsonSchemaTypes[f.spec.Type]
		if !ok {
			typ = "string"
		}
		s.Properties[f.spec.Name] = &jsonschema.Schema{
			Type:        typ,
			Description: f.spec.Description,
		}
		s.Required = append(s.Required, f.spec.Name)
	}
	return s
}
