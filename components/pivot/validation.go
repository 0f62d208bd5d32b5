package pivot

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var embeddedSchemas embed.FS

// DocumentSchema names the embedded pivot document schema.
const DocumentSchema = "document.schema.json"

// SchemaValidator compiles embedded JSON schemas once and validates payloads.
type SchemaValidator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator builds a validator backed by jsonschema v5.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// ValidateDocument validates a decoded pivot document.
func (v *SchemaValidator) ValidateDocument(payload any) error {
	return v.Validate(DocumentSchema, payload)
}

// Validate checks payload against the named embedded schema.
func (v *SchemaValidator) Validate(name string, payload any) error {
	schema, err := v.schemaFor(name)
	if err != nil {
		return err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	normalized, err := normalizeJSON(payload)
	if err != nil {
		return fmt.Errorf("pivot: normalize payload for %s: %w", name, err)
	}
	if err := schema.Validate(normalized); err != nil {
		return fmt.Errorf("pivot: payload failed %s validation: %w", name, err)
	}
	return nil
}

func (v *SchemaValidator) schemaFor(name string) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[name]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}
	data, err := embeddedSchemas.ReadFile("schema/" + name)
	if err != nil {
		return nil, fmt.Errorf("pivot: read schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("pivot: load schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("pivot: compile schema %s: %w", name, err)
	}
	v.mu.Lock()
	v.compiled[name] = compiled
	v.mu.Unlock()
	return compiled, nil
}
