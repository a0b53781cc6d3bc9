// internal/common/validation/document.go
// Package validation checks structured letter document bodies before they
// are handed to the PDF renderer.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema describes the structured body of a letter: an ordered list
// of sections, each with a title and one or more paragraphs.
const documentSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "title": {"type": "string", "maxLength": 200},
      "key": {"type": "string"},
      "texts": {
        "type": "array",
        "items": {"type": "string"},
        "minItems": 1
      }
    },
    "required": ["texts"],
    "additionalProperties": false
  }
}`

var compiledDocumentSchema = gojsonschema.NewStringLoader(documentSchema)

// ValidateDocument validates a structured letter body. An empty document is
// rejected; letters always carry at least one section.
func ValidateDocument(doc json.RawMessage) error {
	if len(doc) == 0 {
		return fmt.Errorf("document body is empty")
	}

	result, err := gojsonschema.Validate(compiledDocumentSchema, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("document failed schema validation: %s", strings.Join(msgs, "; "))
	}

	var sections []json.RawMessage
	if err := json.Unmarshal(doc, &sections); err != nil {
		return fmt.Errorf("document is not a section list: %w", err)
	}
	if len(sections) == 0 {
		return fmt.Errorf("document has no sections")
	}
	return nil
}
