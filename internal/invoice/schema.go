package invoice

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaKind names one oracle output shape.
type SchemaKind string

const (
	SchemaInvoice           SchemaKind = "invoice"
	SchemaClassifier        SchemaKind = "classifier"
	SchemaDiningApplication SchemaKind = "dining_application"
)

// SchemaSet holds the compiled oracle output schemas.
type SchemaSet struct {
	schemas map[SchemaKind]*jsonschema.Schema
}

// LoadSchemas compiles the embedded schemas.
func LoadSchemas() (*SchemaSet, error) {
	set := &SchemaSet{schemas: make(map[SchemaKind]*jsonschema.Schema)}
	for _, kind := range []SchemaKind{SchemaInvoice, SchemaClassifier, SchemaDiningApplication} {
		name := string(kind) + ".json"
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		set.schemas[kind] = schema
	}
	return set, nil
}

// Validate checks a decoded oracle object against the schema for kind.
func (s *SchemaSet) Validate(kind SchemaKind, v map[string]any) error {
	schema, ok := s.schemas[kind]
	if !ok {
		return fmt.Errorf("unknown schema %q", kind)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("oracle output does not match %s schema: %w", kind, err)
	}
	return nil
}
