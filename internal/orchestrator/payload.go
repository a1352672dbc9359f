package orchestrator

import (
	"encoding/json"

	"github.com/mtzanidakis/parlm/internal/llm"
	"github.com/mtzanidakis/parlm/internal/schema"
)

// Payload is the wire form of a Request, as accepted by the HTTP API, the
// one-shot CLI and the scheduled request store.
type Payload struct {
	Model       string          `json:"model,omitempty"`
	Messages    []llm.Message   `json:"messages"`
	SchemaName  string          `json:"schema_name,omitempty"`
	Schema      json.RawMessage `json:"schema"`
	Temperature float64         `json:"temperature,omitempty"`
	Params      llm.Params      `json:"params,omitempty"`
}

// DecodePayload parses and compiles a wire request. Malformed payloads and
// uncompilable schemas surface as ValidationError.
func DecodePayload(data []byte) (Request, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Request{}, &ValidationError{Detail: "malformed request: " + err.Error()}
	}
	return p.ToRequest()
}

// ToRequest compiles the declared schema and builds the runnable request.
func (p Payload) ToRequest() (Request, error) {
	if len(p.Schema) == 0 {
		return Request{}, &ValidationError{Field: "schema", Detail: "a response schema is required"}
	}

	name := p.SchemaName
	if name == "" {
		name = "response"
	}
	sch, err := schema.Compile(name, p.Schema)
	if err != nil {
		return Request{}, &ValidationError{Field: "schema", Detail: err.Error()}
	}

	return Request{
		Model:       p.Model,
		Messages:    p.Messages,
		Schema:      sch,
		Temperature: p.Temperature,
		Params:      p.Params,
	}, nil
}
