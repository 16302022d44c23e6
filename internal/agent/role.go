// Package agent defines the roles a pipeline run moves through: their
// instructions, the tools they may call and the shape of their answers.
package agent

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/lewflauta/AgenticSocialBot/internal/backend"
)

// Role is a named, instruction-bound unit of generation behavior. A Role is
// immutable once built; Output is nil for roles that answer in free text.
type Role struct {
	Name         string
	Instructions string
	AllowedTools []string
	Output       *OutputSchema
}

// Allows reports whether the role may invoke tool.
func (r Role) Allows(tool string) bool {
	return slices.Contains(r.AllowedTools, tool)
}

// OutputSpec returns the backend form of the role's output schema, or nil.
func (r Role) OutputSpec() *backend.OutputSpec {
	if r.Output == nil {
		return nil
	}
	return &backend.OutputSpec{Name: r.Output.Name, Schema: r.Output.Schema}
}

// OutputSchema is a resolved JSON schema a role's final answer must match.
type OutputSchema struct {
	Name     string
	Schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewOutputSchema derives the schema from T.
func NewOutputSchema[T any](name string) (*OutputSchema, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("agent: infer %s schema: %w", name, err)
	}
	return newOutputSchema(name, schema)
}

func newOutputSchema(name string, schema *jsonschema.Schema) (*OutputSchema, error) {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("agent: resolve %s schema: %w", name, err)
	}
	return &OutputSchema{Name: name, Schema: schema, resolved: resolved}, nil
}

// Validate checks raw against the schema.
func (s *OutputSchema) Validate(raw json.RawMessage) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%s: not valid JSON: %w", s.Name, err)
	}
	if err := s.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	return nil
}
