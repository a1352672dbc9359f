package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema pairs a name with a compiled JSON Schema document. The raw document
// travels with requests to the remote endpoint; the compiled form backs local
// conformance checks.
type Schema struct {
	Name     string
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// Error reports a conformance failure, naming the offending field when the
// validator can derive one.
type Error struct {
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema validation failed at %s: %s", e.Field, e.Detail)
	}
	return fmt.Sprintf("schema validation failed: %s", e.Detail)
}

// Compile parses and compiles a JSON Schema document.
func Compile(name string, document []byte) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("schema name is required")
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := compiler.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	raw := make(json.RawMessage, len(document))
	copy(raw, document)

	return &Schema{Name: name, raw: raw, compiled: compiled}, nil
}

// Document returns the raw schema document as provided to Compile.
func (s *Schema) Document() json.RawMessage {
	return s.raw
}

// Validate checks a serialized value against the schema.
func (s *Schema) Validate(value []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(value))
	if err != nil {
		return &Error{Detail: fmt.Sprintf("value is not valid JSON: %v", err)}
	}
	if err := s.compiled.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &Error{Field: offendingField(ve), Detail: ve.Error()}
		}
		return &Error{Detail: err.Error()}
	}
	return nil
}

// Normalize re-serializes a JSON value into canonical encoding/json form.
// Used for the single coercion pass before final validation.
func Normalize(value []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return out, nil
}

// offendingField walks to the deepest failure and renders its instance path.
func offendingField(ve *jsonschema.ValidationError) string {
	deepest := ve
	for len(deepest.Causes) > 0 {
		deepest = deepest.Causes[0]
	}
	if len(deepest.InstanceLocation) == 0 {
		return ""
	}
	return strings.Join(deepest.InstanceLocation, ".")
}
