// ABOUTME: Derives tool input schemas from per-tool parameter structs via reflection.
// ABOUTME: Decodes and validates tools/call arguments against the derived schema.

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SchemaDraft is the JSON Schema dialect marker carried by every input schema.
const SchemaDraft = "http://json-schema.org/draft-07/schema#"

// ErrNotStruct is returned when a parameter type is not a struct.
var ErrNotStruct = errors.New("parameter type must be a struct")

// InputSchema is the object schema describing a tool's arguments.
// Properties and Required are never nil so they always serialize.
type InputSchema struct {
	Schema     string               `json:"$schema"`
	Type       string               `json:"type"`
	Title      string               `json:"title"`
	Properties map[string]*Property `json:"properties"`
	Required   []string             `json:"required"`
}

// Property describes one argument.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Default     any       `json:"default,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// IsRequired reports whether name appears in the required list.
func (s *InputSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// DeriveSchema builds the input schema for a tool from its parameter struct.
//
// Every exported field with a json tag is a parameter. A field is required
// unless it has a default tag or is a pointer; pointers are nullable and
// never required. The desc tag becomes the property description.
func DeriveSchema(toolName string, params reflect.Type) (*InputSchema, error) {
	if params.Kind() == reflect.Pointer {
		params = params.Elem()
	}
	if params.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotStruct, toolName, params.Kind())
	}

	schema := &InputSchema{
		Schema:     SchemaDraft,
		Type:       "object",
		Title:      toolName + "_params",
		Properties: make(map[string]*Property),
		Required:   []string{},
	}

	for i := range params.NumField() {
		field := params.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonPropertyName(field)
		if name == "" || name == "-" {
			continue
		}

		prop := &Property{
			Type:        jsonType(field.Type),
			Description: field.Tag.Get("desc"),
		}
		if prop.Type == "array" {
			prop.Items = &Property{Type: jsonType(elemType(field.Type))}
		}

		defaultString, hasDefault := field.Tag.Lookup("default")
		if hasDefault {
			value, err := parseDefault(field.Type, defaultString)
			if err != nil {
				return nil, fmt.Errorf("%s.%s default: %w", toolName, field.Name, err)
			}
			prop.Default = value
		}

		schema.Properties[name] = prop

		nullable := field.Type.Kind() == reflect.Pointer
		if !hasDefault && !nullable {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema, nil
}

// jsonPropertyName extracts the property name from a field's json tag.
func jsonPropertyName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// jsonType maps a Go type to its JSON Schema type name. Pointers are
// unwrapped; anything unmapped is described as a string.
func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return jsonType(t.Elem())
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}

func elemType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Elem()
}

// parseDefault converts a default tag into a value of the field's JSON type
// so the schema advertises 100 rather than "100".
func parseDefault(t reflect.Type, value string) (any, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Bool:
		return strconv.ParseBool(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.ParseInt(value, 10, 64)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.ParseUint(value, 10, 64)
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(value, 64)
	default:
		return nil, fmt.Errorf("unsupported default for %s", t)
	}
}

// decodeArguments validates raw tools/call arguments against schema and
// decodes them into dst, a pointer to the tool's parameter struct.
// Fields with default tags are pre-filled before decoding. Failures are
// returned as INVALID_PARAMS errors.
func decodeArguments(schema *InputSchema, raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return NewRPCError(CodeInvalidParams, "arguments must be a JSON object")
	}

	for _, name := range schema.Required {
		value, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return NewRPCError(CodeInvalidParams, "missing required parameter: %s", name)
		}
	}

	for name, value := range fields {
		prop, ok := schema.Properties[name]
		if !ok {
			continue
		}
		if !matchesType(prop.Type, value) {
			return NewRPCError(CodeInvalidParams, "parameter %s must be of type %s", name, prop.Type)
		}
	}

	if err := applyDefaults(dst); err != nil {
		return &RPCError{Code: CodeInternalError, Message: "applying parameter defaults", Data: err.Error()}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewRPCError(CodeInvalidParams, "invalid arguments: %v", err)
	}
	return nil
}

// matchesType reports whether a raw JSON value fits a schema type. null is
// accepted for any type; required-ness is checked separately.
func matchesType(schemaType string, value json.RawMessage) bool {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return false
	}
	if bytes.Equal(value, []byte("null")) {
		return true
	}
	switch schemaType {
	case "string":
		return value[0] == '"'
	case "boolean":
		return bytes.Equal(value, []byte("true")) || bytes.Equal(value, []byte("false"))
	case "integer":
		if !isNumber(value) {
			return false
		}
		f, err := strconv.ParseFloat(string(value), 64)
		return err == nil && f == float64(int64(f))
	case "number":
		return isNumber(value)
	case "array":
		return value[0] == '['
	case "object":
		return value[0] == '{'
	default:
		return true
	}
}

func isNumber(value []byte) bool {
	return value[0] == '-' || (value[0] >= '0' && value[0] <= '9')
}

// applyDefaults sets every field carrying a default tag on the struct dst
// points to. Pointer fields receive a pointer to the parsed value.
func applyDefaults(dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return ErrNotStruct
	}
	v = v.Elem()
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		defaultString, ok := field.Tag.Lookup("default")
		if !ok || !field.IsExported() {
			continue
		}
		parsed, err := parseDefault(field.Type, defaultString)
		if err != nil {
			return fmt.Errorf("%s: %w", field.Name, err)
		}
		target := v.Field(i)
		if target.Kind() == reflect.Pointer {
			ptr := reflect.New(target.Type().Elem())
			ptr.Elem().Set(reflect.ValueOf(parsed).Convert(ptr.Elem().Type()))
			target.Set(ptr)
			continue
		}
		target.Set(reflect.ValueOf(parsed).Convert(target.Type()))
	}
	return nil
}
