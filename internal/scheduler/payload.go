package scheduler

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// PayloadValidator checks task payloads before they are accepted. Every
// payload must be a well-formed JSON object; kinds with a registered schema
// are additionally validated against it.
type PayloadValidator struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

func NewPayloadValidator() *PayloadValidator {
	return &PayloadValidator{
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// RegisterSchema binds a JSON Schema to a task kind. Later registrations
// replace earlier ones.
func (p *PayloadValidator) RegisterSchema(kind string, schema []byte) error {
	if kind == "" {
		return faults.InvalidArgument("task kind required")
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return faults.InvalidArgument(fmt.Sprintf("schema for kind %q is not valid JSON", kind))
	}

	url := kind + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return faults.InvalidArgument(fmt.Sprintf("schema for kind %q rejected: %v", kind, err))
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return faults.InvalidArgument(fmt.Sprintf("schema for kind %q does not compile: %v", kind, err))
	}

	p.mu.Lock()
	p.schemas[kind] = compiled
	p.mu.Unlock()
	return nil
}

// Validate rejects payloads that are not structured documents and payloads
// that violate the kind's registered schema.
func (p *PayloadValidator) Validate(kind string, payload []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return faults.InvalidArgument("payload must be well-formed JSON")
	}
	if _, ok := doc.(map[string]any); !ok {
		return faults.InvalidArgument("payload must be a JSON object")
	}

	p.mu.RLock()
	schema := p.schemas[kind]
	p.mu.RUnlock()
	if schema == nil {
		return nil
	}
	if err := schema.Validate(doc); err != nil {
		return faults.InvalidArgument(fmt.Sprintf("payload rejected by %q schema: %v", kind, err))
	}
	return nil
}
