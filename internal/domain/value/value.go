// Package value models arbitrary JSON input as a tagged union with ordered
// map keys, so downstream normalization never depends on reflection or on
// Go map iteration order.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the union.
type Kind int

const (
	// Null is the JSON null value.
	Null Kind = iota
	// Bool is a JSON boolean.
	Bool
	// Number is a JSON number (kept as float64).
	Number
	// String is a JSON string.
	String
	// Sequence is a JSON array.
	Sequence
	// Map is a JSON object with insertion-ordered keys.
	Map
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Sequence:
		return "sequence"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one node of the union. The zero value is Null.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	seq  []Value
	keys []string
	vals []Value
}

// NewNull returns a null value.
func NewNull() Value { return Value{kind: Null} }

// NewBool returns a boolean value.
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }

// NewNumber returns a numeric value.
func NewNumber(n float64) Value { return Value{kind: Number, num: n} }

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: String, str: s} }

// NewSequence returns an array value.
func NewSequence(items ...Value) Value { return Value{kind: Sequence, seq: items} }

// NewMap returns an empty ordered map value.
func NewMap() Value { return Value{kind: Map} }

// Kind returns the union discriminator.
func (v Value) Kind() Kind { return v.kind }

// IsScalar reports whether the value is null, bool, number, or string.
func (v Value) IsScalar() bool {
	return v.kind == Null || v.kind == Bool || v.kind == Number || v.kind == String
}

// Bool returns the boolean payload (valid only for Bool).
func (v Value) Bool() bool { return v.b }

// Number returns the numeric payload (valid only for Number).
func (v Value) Number() float64 { return v.num }

// Str returns the string payload (valid only for String).
func (v Value) Str() string { return v.str }

// Items returns the array elements (valid only for Sequence).
func (v Value) Items() []Value { return v.seq }

// Len returns the number of elements or keys.
func (v Value) Len() int {
	switch v.kind {
	case Sequence:
		return len(v.seq)
	case Map:
		return len(v.keys)
	default:
		return 0
	}
}

// Keys returns map keys in insertion order (valid only for Map).
func (v Value) Keys() []string { return v.keys }

// Get returns the value for a map key.
func (v Value) Get(key string) (Value, bool) {
	for i, k := range v.keys {
		if k == key {
			return v.vals[i], true
		}
	}
	return Value{}, false
}

// Set appends or replaces a map entry, preserving the original insertion
// position on replace.
func (v *Value) Set(key string, val Value) {
	for i, k := range v.keys {
		if k == key {
			v.vals[i] = val
			return
		}
	}
	v.keys = append(v.keys, key)
	v.vals = append(v.vals, val)
}

// Decode parses JSON into a Value, preserving object key order.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	// Trailing garbage after the first value is malformed input.
	if dec.More() {
		return Value{}, fmt.Errorf("unexpected trailing data")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("decode value: %w", err)
	}
	return fromToken(dec, tok)
}

func fromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", t.String(), err)
		}
		return NewNumber(f), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		switch t {
		case '{':
			return decodeMap(dec)
		case '[':
			return decodeSequence(dec)
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t.String())
		}
	default:
		return Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeMap(dec *json.Decoder) (Value, error) {
	m := NewMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("decode key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		m.Set(key, val)
	}
	// Consume closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, fmt.Errorf("decode object end: %w", err)
	}
	return m, nil
}

func decodeSequence(dec *json.Decoder) (Value, error) {
	var items []Value
	for dec.More() {
		item, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
	// Consume closing ']'
	if _, err := dec.Token(); err != nil {
		return Value{}, fmt.Errorf("decode array end: %w", err)
	}
	return NewSequence(items...), nil
}

// Literal renders the value in its JSON literal form. Used when flattening
// stops and a still-nested value must become an opaque string.
func (v Value) Literal() string {
	var sb strings.Builder
	v.writeLiteral(&sb)
	return sb.String()
}

func (v Value) writeLiteral(sb *strings.Builder) {
	switch v.kind {
	case Null:
		sb.WriteString("null")
	case Bool:
		sb.WriteString(strconv.FormatBool(v.b))
	case Number:
		sb.WriteString(formatNumber(v.num))
	case String:
		data, _ := json.Marshal(v.str)
		sb.Write(data)
	case Sequence:
		sb.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeLiteral(sb)
		}
		sb.WriteByte(']')
	case Map:
		sb.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			data, _ := json.Marshal(k)
			sb.Write(data)
			sb.WriteString(": ")
			v.vals[i].writeLiteral(sb)
		}
		sb.WriteByte('}')
	}
}

// ScalarString renders a scalar value as a plain string (no JSON quoting).
func (v Value) ScalarString() string {
	switch v.kind {
	case Null:
		return ""
	case Bool:
		return strconv.FormatBool(v.b)
	case Number:
		return formatNumber(v.num)
	case String:
		return v.str
	default:
		return v.Literal()
	}
}

func formatNumber(f float64) string {
	// Integers render without a decimal point, matching their input form.
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
