// Package models defines extraction value types shared by the extractor,
// tracker, and API layer.
package models

import (
	"encoding/json"
	"fmt"
)

// FieldValue holds an extracted value for one field. Scalar fields carry Text;
// multi fields carry Items. A FieldValue only exists for fields that actually
// matched, so absence in an Extraction means "not yet known", never "empty".
type FieldValue struct {
	Text  string
	Items []string
	Multi bool
}

// ScalarValue constructs a FieldValue for a single-valued field.
func ScalarValue(text string) FieldValue {
	return FieldValue{Text: text}
}

// MultiValue constructs a FieldValue for a collection-valued field.
func MultiValue(items []string) FieldValue {
	return FieldValue{Items: items, Multi: true}
}

// IsEmpty reports whether the value carries no usable content.
func (v FieldValue) IsEmpty() bool {
	if v.Multi {
		return len(v.Items) == 0
	}
	return v.Text == ""
}

// MarshalJSON encodes scalar values as a JSON string and multi values as a
// JSON array, matching the wire contract's "value or list of values" shape.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.Multi {
		return json.Marshal(v.Items)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts either a JSON string or a JSON array of strings.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*v = ScalarValue(text)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*v = MultiValue(items)
		return nil
	}
	return fmt.Errorf("field value must be a string or array of strings: %s", string(data))
}

// Extraction maps field names to their extracted values for one message.
type Extraction map[string]FieldValue

// Has reports whether the field was extracted with a non-empty value.
func (e Extraction) Has(field string) bool {
	v, ok := e[field]
	return ok && !v.IsEmpty()
}
