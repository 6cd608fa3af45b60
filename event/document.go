package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Document is a structured payload reserved for forward compatibility.
// Extended-state documents are currently always empty objects.
type Document json.RawMessage

// EmptyDocument returns a fresh empty JSON object.
func EmptyDocument() Document {
	return Document("{}")
}

// String returns the JSON text of d, or "{}" when d is empty.
func (d Document) String() string {
	if len(d) == 0 {
		return "{}"
	}
	return string(d)
}

// MarshalJSON emits d verbatim, substituting "{}" for an empty document.
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("{}"), nil
	}
	return []byte(d), nil
}

const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"maxProperties": 64
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("document.schema.json", strings.NewReader(documentSchema)); err != nil {
			schemaErr = fmt.Errorf("add document schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("document.schema.json")
	})
	return compiledSchema, schemaErr
}

// ValidateDocument checks that d is a JSON object accepted by the document
// schema. An empty document is valid.
func ValidateDocument(d Document) error {
	if len(d) == 0 {
		return nil
	}
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(d, &payload); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	return nil
}

// NormalizeDocument returns d when it validates and an empty document
// otherwise, together with the validation error.
func NormalizeDocument(d Document) (Document, error) {
	if len(d) == 0 {
		return EmptyDocument(), nil
	}
	if err := ValidateDocument(d); err != nil {
		return EmptyDocument(), err
	}
	return d, nil
}
