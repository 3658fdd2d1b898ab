package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	schemavalidate "github.com/santhosh-tekuri/jsonschema/v6"
)

// The artifact schemas are generated from the Go types by reflection,
// so the struct declarations stay the single source of truth for both
// output construction and input validation.

// SchemaFor returns the JSON Schema for one of the artifact kinds:
// "manifest", "ocr", or "grouping".
func SchemaFor(kind string) ([]byte, error) {
	var target any
	switch kind {
	case "manifest":
		target = &Manifest{}
	case "ocr":
		target = &OCRDocument{}
	case "grouping":
		target = &GroupingDocument{}
	default:
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	r := jsonschema.Reflector{DoNotReference: true}
	js := r.Reflect(target)
	data, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", kind, err)
	}
	return append(data, '\n'), nil
}

// SchemaValidator validates raw artifact JSON against a compiled schema.
type SchemaValidator struct {
	schema *schemavalidate.Schema
}

// NewSchemaValidator compiles the schema for the given artifact kind.
func NewSchemaValidator(kind string) (*SchemaValidator, error) {
	data, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	var schemaDoc any
	if err := json.Unmarshal(data, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal %s schema: %w", kind, err)
	}
	url := kind + ".schema.json"
	compiler := schemavalidate.NewCompiler()
	if err := compiler.AddResource(url, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", kind, err)
	}
	return &SchemaValidator{schema: compiled}, nil
}

// Validate checks raw JSON bytes against the schema.
func (v *SchemaValidator) Validate(raw []byte) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
