package registry

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/tidwall/gjson"
)

// ErrMalformedDefinition is wrapped by every structural validation failure.
var ErrMalformedDefinition = errors.New("malformed provider definition")

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

type kind int

const (
	kindString kind = iota
	kindNumber
	kindCount
	kindBool
	kindObject
	kindArray
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindNumber:
		return "non-negative number"
	case kindCount:
		return "non-negative integer"
	case kindBool:
		return "boolean"
	case kindObject:
		return "object"
	case kindArray:
		return "array"
	default:
		return "unknown"
	}
}

type field struct {
	name     string
	kind     kind
	required bool
}

var providerFields = []field{
	{name: "id", kind: kindString, required: true},
	{name: "name", kind: kindString, required: true},
	{name: "type", kind: kindString, required: true},
	{name: "api_key", kind: kindString},
	{name: "api_endpoint", kind: kindString},
	{name: "default_large_model_id", kind: kindString},
	{name: "default_small_model_id", kind: kindString},
	{name: "default_headers", kind: kindObject},
	{name: "models", kind: kindArray},
}

var modelFields = []field{
	{name: "id", kind: kindString, required: true},
	{name: "name", kind: kindString, required: true},
	{name: "cost_per_1m_in", kind: kindNumber, required: true},
	{name: "cost_per_1m_out", kind: kindNumber, required: true},
	{name: "cost_per_1m_in_cached", kind: kindNumber},
	{name: "cost_per_1m_out_cached", kind: kindNumber},
	{name: "context_window", kind: kindCount, required: true},
	{name: "default_max_tokens", kind: kindCount, required: true},
	{name: "can_reason", kind: kindBool},
	{name: "has_reasoning_efforts", kind: kindBool},
	{name: "default_reasoning_effort", kind: kindString},
	{name: "supports_attachments", kind: kindBool},
}

// validateDefinition checks the structure of a raw provider definition before
// it is decoded. Optional fields may be omitted or null.
func validateDefinition(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: invalid JSON", ErrMalformedDefinition)
	}

	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return fmt.Errorf("%w: expected a JSON object", ErrMalformedDefinition)
	}

	if err := checkFields(doc, providerFields, ""); err != nil {
		return err
	}
	if doc.Get("id").String() == "" {
		return fmt.Errorf("%w: id must not be empty", ErrMalformedDefinition)
	}

	var headerErr error
	doc.Get("default_headers").ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			headerErr = fmt.Errorf("%w: default_headers.%s must be a string", ErrMalformedDefinition, key.String())
			return false
		}
		return true
	})
	if headerErr != nil {
		return headerErr
	}

	for i, model := range doc.Get("models").Array() {
		prefix := fmt.Sprintf("models[%d].", i)
		if !model.IsObject() {
			return fmt.Errorf("%w: %s must be an object", ErrMalformedDefinition, prefix[:len(prefix)-1])
		}
		if err := checkFields(model, modelFields, prefix); err != nil {
			return err
		}
	}

	return nil
}

func checkFields(obj gjson.Result, fields []field, prefix string) error {
	for _, f := range fields {
		v := obj.Get(f.name)
		if !v.Exists() || v.Type == gjson.Null {
			if f.required {
				return fmt.Errorf("%w: missing required field %s%s", ErrMalformedDefinition, prefix, f.name)
			}
			continue
		}
		if !f.kind.matches(v) {
			return fmt.Errorf("%w: %s%s must be a %s", ErrMalformedDefinition, prefix, f.name, f.kind)
		}
	}
	return nil
}

func (k kind) matches(v gjson.Result) bool {
	switch k {
	case kindString:
		return v.Type == gjson.String
	case kindNumber:
		return v.Type == gjson.Number && v.Num >= 0
	case kindCount:
		return v.Type == gjson.Number && v.Num >= 0 && v.Num == math.Trunc(v.Num)
	case kindBool:
		return v.Type == gjson.True || v.Type == gjson.False
	case kindObject:
		return v.IsObject()
	case kindArray:
		return v.IsArray()
	default:
		return false
	}
}
