package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrUnsupportedValue is returned when an argument value falls outside the
// string | number | bool | object union (arrays, for example).
var ErrUnsupportedValue = errors.New("unsupported argument value")

// ValueKind enumerates the argument value union.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// Value is a tool argument value: a string, a number, a bool or a nested
// mapping. The zero Value is the empty string.
type Value struct {
	kind ValueKind
	s    string
	n    float64
	b    bool
	obj  Arguments
}

func StringValue(s string) Value      { return Value{kind: KindString, s: s} }
func NumberValue(n float64) Value     { return Value{kind: KindNumber, n: n} }
func BoolValue(b bool) Value          { return Value{kind: KindBool, b: b} }
func ObjectValue(obj Arguments) Value { return Value{kind: KindObject, obj: obj} }

func (v Value) Kind() ValueKind             { return v.kind }
func (v Value) AsString() (string, bool)    { return v.s, v.kind == KindString }
func (v Value) AsNumber() (float64, bool)   { return v.n, v.kind == KindNumber }
func (v Value) AsBool() (bool, bool)        { return v.b, v.kind == KindBool }
func (v Value) AsObject() (Arguments, bool) { return v.obj, v.kind == KindObject }

// String renders the value as plain text, e.g. for use in an API query.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindObject:
		data, _ := json.Marshal(v.obj)
		return string(data)
	}
	return v.s
}

// IsEmpty reports whether the value is an empty string or an empty object.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindString:
		return v.s == ""
	case KindObject:
		return len(v.obj) == 0
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.n)
	case KindBool:
		return json.Marshal(v.b)
	case KindObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	}
	return json.Marshal(v.s)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// valueFromAny converts a decoded JSON value into the union. A JSON null is
// read as the empty string, which is what an unfilled argument looks like.
func valueFromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return StringValue(""), nil
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return NumberValue(f), nil
	case float64:
		return NumberValue(x), nil
	case int:
		return NumberValue(float64(x)), nil
	case map[string]any:
		obj := make(Arguments, len(x))
		for k, item := range x {
			val, err := valueFromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = val
		}
		return ObjectValue(obj), nil
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
}

// ValueOf converts a Go value (string, bool, number or map) into a Value.
func ValueOf(raw any) (Value, error) { return valueFromAny(raw) }

// Arguments maps argument names to values.
type Arguments map[string]Value

// Keys returns the argument names in sorted order.
func (a Arguments) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Argument is one named slot of an argument shape.
type Argument struct {
	Name    string
	Default Value
}

// ArgumentShape is the ordered set of arguments a tool accepts.
type ArgumentShape []Argument

// Args builds a shape of empty-string arguments in the given order.
func Args(names ...string) ArgumentShape {
	shape := make(ArgumentShape, len(names))
	for i, n := range names {
		shape[i] = Argument{Name: n, Default: StringValue("")}
	}
	return shape
}

// Keys returns the argument names in declaration order.
func (s ArgumentShape) Keys() []string {
	keys := make([]string, len(s))
	for i, a := range s {
		keys[i] = a.Name
	}
	return keys
}

// Defaults returns the shape as Arguments holding the default values.
func (s ArgumentShape) Defaults() Arguments {
	out := make(Arguments, len(s))
	for _, a := range s {
		out[a.Name] = a.Default
	}
	return out
}

// Matches reports whether args has exactly the shape's key set.
func (s ArgumentShape) Matches(args Arguments) bool {
	if len(args) != len(s) {
		return false
	}
	for _, a := range s {
		if _, ok := args[a.Name]; !ok {
			return false
		}
	}
	return true
}

// MarshalJSON writes the shape as an object, keeping declaration order.
func (s ArgumentShape) MarshalJSON() ([]byte, error) {
	return marshalOrdered(s.Keys(), s.Defaults())
}

func marshalOrdered(keys []string, values Arguments) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToolSchema describes one tool. It is immutable once registered.
type ToolSchema struct {
	Name        string        `json:"toolName"`
	Description string        `json:"toolDescription"`
	Arguments   ArgumentShape `json:"toolArgs"`
	Rules       []string      `json:"toolRules"`
}

// FilledTool is a schema with argument values taken from user input.
// Its key set always equals the schema's argument shape.
type FilledTool struct {
	Schema ToolSchema
	Args   Arguments
}

// String returns the named argument as text, or "" if absent.
func (f FilledTool) String(name string) string {
	v, ok := f.Args[name]
	if !ok {
		return ""
	}
	return v.String()
}

// With returns a copy of f with name set to v. Unknown names are ignored so
// the key set never changes.
func (f FilledTool) With(name string, v Value) FilledTool {
	if _, ok := f.Args[name]; !ok {
		return f
	}
	args := make(Arguments, len(f.Args))
	for k, val := range f.Args {
		args[k] = val
	}
	args[name] = v
	return FilledTool{Schema: f.Schema, Args: args}
}

// MarshalJSON writes {"toolName": ..., "toolArgs": {...}} with arguments in
// schema order.
func (f FilledTool) MarshalJSON() ([]byte, error) {
	args, err := marshalOrdered(f.Schema.Arguments.Keys(), f.Args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Name string          `json:"toolName"`
		Args json.RawMessage `json:"toolArgs"`
	}{f.Schema.Name, args})
}
