package taskio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ── Record validation ──────────────────────────────────────
// Transformed records are checked against a JSON schema before they are
// written as tasks. Invalid records are skipped, not fatal: one bad row
// must not sink a whole import run.

const taskRecordSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["title"],
	"properties": {
		"title":     {"type": "string", "minLength": 1},
		"notes":     {"type": "string"},
		"status":    {"enum": ["todo", "doing", "done"]},
		"priority":  {"enum": ["low", "medium", "high"]},
		"dueAt":     {"type": "string"},
		"sortOrder": {"type": "number"}
	},
	"additionalProperties": true
}`

var (
	schemaOnce sync.Once
	taskSchema *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("task-record.json", strings.NewReader(taskRecordSchema)); err != nil {
			schemaErr = err
			return
		}
		taskSchema, schemaErr = c.Compile("task-record.json")
	})
	return taskSchema, schemaErr
}

// ValidateRecord checks a transformed record against the task record
// schema. Data is round-tripped through JSON first so driver-specific
// value types (int64, time.Time) validate like their wire forms.
func ValidateRecord(r Record) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := s.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := leafCause(ve)
			if leaf.InstanceLocation != "" {
				return fmt.Errorf("record field %s: %s", leaf.InstanceLocation, leaf.Message)
			}
			return fmt.Errorf("record: %s", leaf.Message)
		}
		return err
	}
	return nil
}

// leafCause walks to the most specific cause of a validation error.
func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
