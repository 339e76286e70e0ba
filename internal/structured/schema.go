// Package structured turns free-text replies into values that satisfy a
// declared field schema, re-prompting automated players until they comply.
package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Type is a JSON value type a field may hold.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Field declares one output field.
type Field struct {
	Name        string
	Type        Type
	Description string
	Required    bool
}

// Schema is the output contract for a single turn.
type Schema struct {
	Title  string // display only, never sent to players
	Fields []Field
}

const formatInstructions = "The output should be reformatted as a JSON instance that conforms to the JSON schema below.\n" +
	"Here is the output schema:\n```\n%s\n```\n"

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Directive returns the format instructions for automated players: the
// field names, types and descriptions as JSON schema, without the title.
func (s Schema) Directive() string {
	var buf bytes.Buffer
	buf.WriteString(`{"properties":{`)
	var required []string
	for i, f := range s.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(f.Name)
		buf.Write(name)
		buf.WriteByte(':')
		prop := struct {
			Description string `json:"description,omitempty"`
			Type        Type   `json:"type"`
		}{f.Description, f.Type}
		b, _ := json.Marshal(prop)
		buf.Write(b)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	buf.WriteString(`}`)
	if len(required) > 0 {
		b, _ := json.Marshal(required)
		buf.WriteString(`,"required":`)
		buf.Write(b)
	}
	buf.WriteString(`}`)

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "    "); err != nil {
		return fmt.Sprintf(formatInstructions, buf.String())
	}
	return fmt.Sprintf(formatInstructions, out.String())
}

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ValidationError lists every way a reply missed the schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Validate parses raw as a JSON object and checks it field by field.
// Unknown fields, missing required fields and mistyped values are all
// rejected.
func (s Schema) Validate(raw string) (Result, error) {
	obj, ok := findObject(raw)
	if !ok {
		return Result{}, &ValidationError{Problems: []string{"response does not contain a JSON object"}}
	}

	var problems []string
	values := make(map[string]any, len(obj))
	for _, f := range s.Fields {
		rawVal, sent := obj[f.Name]
		if !sent {
			if f.Required {
				problems = append(problems, fmt.Sprintf("missing required field %q", f.Name))
			}
			continue
		}
		v, err := decodeValue(f, rawVal)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if v != nil {
			values[f.Name] = v
		}
	}
	var unknown []string
	for name := range obj {
		if _, known := s.field(name); !known {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		problems = append(problems, fmt.Sprintf("unexpected field %q", name))
	}
	if len(problems) > 0 {
		return Result{}, &ValidationError{Problems: problems}
	}
	return Result{values: values}, nil
}

// CheckDirect reports whether the schema can take a raw reply verbatim.
func (s Schema) CheckDirect() error {
	if len(s.Fields) != 1 {
		return fmt.Errorf("%w: direct coercion needs a single-field schema, %q has %d fields", ErrConfiguration, s.Title, len(s.Fields))
	}
	if s.Fields[0].Type != TypeString {
		return fmt.Errorf("%w: direct coercion needs a string field, %q is %s", ErrConfiguration, s.Fields[0].Name, s.Fields[0].Type)
	}
	return nil
}

// Coerce maps raw onto the schema's only field without any transformation.
func (s Schema) Coerce(raw string) (Result, error) {
	if err := s.CheckDirect(); err != nil {
		return Result{}, err
	}
	return Result{values: map[string]any{s.Fields[0].Name: raw}}, nil
}

func findObject(raw string) (map[string]json.RawMessage, bool) {
	candidates := []string{strings.TrimSpace(raw)}
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}
	for _, c := range candidates {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(c), &obj); err == nil && obj != nil {
			return obj, true
		}
	}
	return nil, false
}

func decodeValue(f Field, raw json.RawMessage) (any, error) {
	if string(bytes.TrimSpace(raw)) == "null" {
		if f.Required {
			return nil, fmt.Errorf("field %q must not be null", f.Name)
		}
		return nil, nil
	}
	switch f.Type {
	case TypeString:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, typeError(f, raw)
		}
		return v, nil
	case TypeInteger:
		return decodeInteger(f, raw)
	case TypeNumber:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, typeError(f, raw)
		}
		return v, nil
	case TypeBoolean:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, typeError(f, raw)
		}
		return v, nil
	}
	return nil, fmt.Errorf("field %q has unsupported type %q", f.Name, f.Type)
}

// maxExactFloat is the largest magnitude a float64 holds without losing
// integer precision.
const maxExactFloat = 1 << 53

// decodeInteger accepts integral JSON numbers that fit an int64. Values
// written with a fraction or exponent must also be exactly representable.
func decodeInteger(f Field, raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, typeError(f, raw)
	}
	n, ok := v.(json.Number)
	if !ok {
		return nil, typeError(f, raw)
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	} else if errors.Is(err, strconv.ErrRange) {
		return nil, fmt.Errorf("field %q is out of the integer range, got %s", f.Name, n)
	}
	fv, err := n.Float64()
	if err != nil || fv != math.Trunc(fv) {
		return nil, typeError(f, raw)
	}
	if math.Abs(fv) > maxExactFloat {
		return nil, fmt.Errorf("field %q is out of the integer range, got %s", f.Name, n)
	}
	return int64(fv), nil
}

func typeError(f Field, raw json.RawMessage) error {
	return fmt.Errorf("field %q should be %s, got %s", f.Name, f.Type, string(raw))
}
