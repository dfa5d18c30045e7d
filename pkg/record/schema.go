package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// civilDetailsSchema constrains the registered facts before they enter a
// record. Free-text fields stay permissive; identifiers and dates do not.
const civilDetailsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["registration_number", "subject_name", "birth_date", "birth_place"],
  "properties": {
    "registration_number": {"type": "string", "pattern": "^[0-9]{4}-[A-Z]{2,4}-[0-9]{6}$"},
    "subject_name": {"type": "string", "minLength": 1, "maxLength": 200},
    "birth_date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
    "birth_place": {"type": "string", "minLength": 1, "maxLength": 200},
    "father_name": {"type": "string", "maxLength": 200},
    "mother_name": {"type": "string", "maxLength": 200}
  },
  "additionalProperties": false
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func detailsSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		const url = "https://registrum.schemas.local/civil_details.schema.json"
		if err := c.AddResource(url, strings.NewReader(civilDetailsSchema)); err != nil {
			schemaErr = fmt.Errorf("record: schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}

// ValidateDetails checks civil details against the registry schema.
func ValidateDetails(d CivilDetails) error {
	schema, err := detailsSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("record: details not serializable: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("record: details not decodable: %w", err)
	}

	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("record: invalid civil details: %w", err)
	}
	return nil
}
