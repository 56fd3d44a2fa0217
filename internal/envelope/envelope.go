// Package envelope normalizes the tool's JSON output.
//
// Depending on version and flags the tool wraps its payload in one of several
// envelopes, or prints the payload with no envelope at all. Parse never fails:
// unparsable text yields a Document with Structured() == false so callers can
// treat the text as the final payload. Record lists are located by trying each
// known Shape in a fixed order; callers never index into an assumed shape.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Shape identifies where a record list was found.
type Shape int

const (
	ShapeNone Shape = iota
	// ShapeBareArray is a top-level array: [ {...}, ... ]
	ShapeBareArray
	// ShapeResultArray is {"result": [ {...}, ... ]}
	ShapeResultArray
	// ShapeResultRecords is {"result": {"records": [ ... ]}}
	ShapeResultRecords
	// ShapeResultFirstField is {"result": [ {"<field>": [ ... ]} ]}
	ShapeResultFirstField
)

func (s Shape) String() string {
	switch s {
	case ShapeBareArray:
		return "array"
	case ShapeResultArray:
		return ".result"
	case ShapeResultRecords:
		return ".result.records"
	case ShapeResultFirstField:
		return ".result[0].<field>"
	default:
		return "none"
	}
}

// Document is parsed tool output.
type Document struct {
	raw        string
	structured bool
	array      []json.RawMessage
	object     map[string]json.RawMessage
}

// Parse parses raw output. Banner lines printed before the JSON value are
// tolerated as long as the value runs to the end of the text.
func Parse(raw string) Document {
	d := Document{raw: raw}

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return d
	}

	if prefix := raw[:start]; strings.TrimSpace(prefix) != "" && !strings.HasSuffix(strings.TrimRight(prefix, " \t\r"), "\n") {
		return d
	}

	dec := json.NewDecoder(strings.NewReader(raw[start:]))
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return d
	}

	rest := raw[start+int(dec.InputOffset()):]
	if strings.TrimSpace(rest) != "" {
		return d
	}

	value = bytes.TrimSpace(value)
	switch value[0] {
	case '[':
		if err := json.Unmarshal(value, &d.array); err != nil {
			return d
		}
	case '{':
		if err := json.Unmarshal(value, &d.object); err != nil {
			return d
		}
	default:
		return d
	}

	d.structured = true
	return d
}

// Structured reports whether the output parsed as a JSON object or array.
func (d Document) Structured() bool {
	return d.structured
}

// Raw returns the original text.
func (d Document) Raw() string {
	return d.raw
}

// Result returns the raw .result member, if any.
func (d Document) Result() (json.RawMessage, bool) {
	if d.object == nil {
		return nil, false
	}

	r, ok := d.object["result"]
	if !ok || isNull(r) {
		return nil, false
	}

	return r, true
}

// DecodeResult unmarshals .result into v.
func (d Document) DecodeResult(v any) error {
	r, ok := d.Result()
	if !ok {
		return fmt.Errorf("output has no result member")
	}

	return json.Unmarshal(r, v)
}

// Failure reports a non-zero envelope status and the tool's message.
func (d Document) Failure() (string, bool) {
	if d.object == nil {
		return "", false
	}

	raw, ok := d.object["status"]
	if !ok {
		return "", false
	}

	var status int
	if err := json.Unmarshal(raw, &status); err != nil || status == 0 {
		return "", false
	}

	for _, key := range []string{"message", "name"} {
		if s, ok := stringMember(d.object, key); ok && s != "" {
			return s, true
		}
	}

	return fmt.Sprintf("tool returned status %d", status), true
}

type matcher struct {
	shape Shape
	match func(d Document, field string) []json.RawMessage
}

// matchers are tried in priority order.
var matchers = []matcher{
	{ShapeBareArray, func(d Document, _ string) []json.RawMessage {
		return d.array
	}},
	{ShapeResultArray, func(d Document, field string) []json.RawMessage {
		list := d.resultArray()
		if field != "" && len(list) > 0 {
			if _, wrapped := arrayMember(list[0], field); wrapped {
				return nil
			}
		}

		return list
	}},
	{ShapeResultRecords, func(d Document, _ string) []json.RawMessage {
		r, ok := d.Result()
		if !ok {
			return nil
		}

		list, _ := arrayMember(r, "records")
		return list
	}},
	{ShapeResultFirstField, func(d Document, field string) []json.RawMessage {
		if field == "" {
			return nil
		}

		list := d.resultArray()
		if len(list) == 0 {
			return nil
		}

		records, _ := arrayMember(list[0], field)
		return records
	}},
}

// Records returns the record list and the shape it was found under. field names
// the list inside a single-element result wrapper. When no shape matches, the
// list is empty and the shape is ShapeNone.
func (d Document) Records(field string) ([]json.RawMessage, Shape) {
	if !d.structured {
		return []json.RawMessage{}, ShapeNone
	}

	for _, m := range matchers {
		if list := m.match(d, field); len(list) > 0 {
			return list, m.shape
		}
	}

	return []json.RawMessage{}, ShapeNone
}

// String returns a scalar string payload, trying .result.<field>,
// .result[0].<field>, .<field> and finally .result itself.
func (d Document) String(field string) (string, bool) {
	if d.object == nil {
		return "", false
	}

	if r, ok := d.Result(); ok {
		var obj map[string]json.RawMessage
		if json.Unmarshal(r, &obj) == nil {
			if s, ok := stringMember(obj, field); ok {
				return s, true
			}
		}

		if list := d.resultArray(); len(list) > 0 {
			var first map[string]json.RawMessage
			if json.Unmarshal(list[0], &first) == nil {
				if s, ok := stringMember(first, field); ok {
					return s, true
				}
			}
		}
	}

	if s, ok := stringMember(d.object, field); ok {
		return s, true
	}

	if r, ok := d.Result(); ok {
		var s string
		if json.Unmarshal(r, &s) == nil {
			return s, true
		}
	}

	return "", false
}

func (d Document) resultArray() []json.RawMessage {
	r, ok := d.Result()
	if !ok {
		return nil
	}

	var list []json.RawMessage
	if json.Unmarshal(r, &list) != nil {
		return nil
	}

	return list
}

func arrayMember(raw json.RawMessage, key string) ([]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return nil, false
	}

	member, ok := obj[key]
	if !ok {
		return nil, false
	}

	var list []json.RawMessage
	if json.Unmarshal(member, &list) != nil {
		return nil, false
	}

	return list, true
}

func stringMember(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}

	var s string
	if json.Unmarshal(raw, &s) != nil {
		return "", false
	}

	return s, true
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
