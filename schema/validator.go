// Package entityschema validates the semi-structured extracted-entities
// payload stored alongside each article and converts it into typed values.
// The clustering engine never consumes the raw jsonb shape directly.
package entityschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed entity_payload.schema.json
var entityPayloadSchemaJSON string

// EntityTag is one tagged entity as upstream extraction wrote it.
type EntityTag struct {
	EntityName     string `json:"entity_name"`
	EntityCategory string `json:"entity_category"`
	EntityID       *int64 `json:"entity_id,omitempty"`
}

// EntityPayload is the validated shape of the extracted_entities column.
type EntityPayload struct {
	Entities     []EntityTag `json:"entities"`
	NoClustering any         `json:"no_clustering,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateEntityPayload checks raw against the embedded schema and returns the
// typed payload. Tags with a blank name or category after trimming are dropped
// rather than rejected; upstream extraction occasionally emits them.
func ValidateEntityPayload(raw json.RawMessage) (*EntityPayload, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode entity payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize entity payload JSON: %w", err)
	}

	var payload EntityPayload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal entity payload: %w", err)
	}

	kept := payload.Entities[:0]
	for _, tag := range payload.Entities {
		if strings.TrimSpace(tag.EntityName) == "" || strings.TrimSpace(tag.EntityCategory) == "" {
			continue
		}
		kept = append(kept, tag)
	}
	payload.Entities = kept

	return &payload, nil
}

// SkipClustering reports whether the payload opts the article out of
// clustering. Upstream writers have stored both booleans and the strings
// "true"/"false" here, so both are accepted.
func (p *EntityPayload) SkipClustering() bool {
	if p == nil {
		return false
	}
	switch v := p.NoClustering.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("entity_payload.schema.json", strings.NewReader(entityPayloadSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("entity_payload.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
