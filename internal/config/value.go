package config

import (
	"strconv"
	"strings"
)

// Kind identifies which variant of the tagged union a Value holds.
type Kind int

// Value kinds. Scalars of different kinds never merge with each other.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSequence
	KindMapping
)

// String returns the lowercase kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// IsScalar reports whether k is neither a sequence nor a mapping.
func (k Kind) IsScalar() bool {
	return k != KindSequence && k != KindMapping
}

// Value is one node of a parsed configuration document.
// Mappings keep the insertion order of their keys.
// A nil *Value behaves like a null value for read-only accessors.
type Value struct {
	// kind selects which of the fields below is meaningful.
	kind Kind
	// b, i, f and s hold scalar payloads.
	b bool
	i int64
	f float64
	s string
	// items holds sequence elements.
	items []*Value
	// keys preserves mapping order, fields holds mapping entries.
	keys   []string
	fields map[string]*Value
}

// Null returns a null value.
func Null() *Value {
	return &Value{kind: KindNull}
}

// Bool returns a boolean scalar.
func Bool(b bool) *Value {
	return &Value{kind: KindBool, b: b}
}

// Int returns an integer scalar.
func Int(i int64) *Value {
	return &Value{kind: KindInt, i: i}
}

// Float returns a floating point scalar.
func Float(f float64) *Value {
	return &Value{kind: KindFloat, f: f}
}

// String returns a string scalar.
func String(s string) *Value {
	return &Value{kind: KindString, s: s}
}

// Sequence returns a sequence holding items. The slice is copied, the items are not.
func Sequence(items ...*Value) *Value {
	return &Value{
		kind:  KindSequence,
		items: append(make([]*Value, 0, len(items)), items...),
	}
}

// Mapping returns an empty mapping.
func Mapping() *Value {
	return &Value{
		kind:   KindMapping,
		fields: make(map[string]*Value),
	}
}

// Strings is a shorthand for a sequence of string scalars.
func Strings(values ...string) *Value {
	items := make([]*Value, 0, len(values))
	for _, s := range values {
		items = append(items, String(s))
	}

	return &Value{kind: KindSequence, items: items}
}

// Kind returns the variant held by v.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}

	return v.kind
}

// IsNull reports whether v is nil or a null value.
func (v *Value) IsNull() bool {
	return v.Kind() == KindNull
}

// BoolValue returns the boolean payload.
func (v *Value) BoolValue() bool {
	return v != nil && v.b
}

// IntValue returns the integer payload.
func (v *Value) IntValue() int64 {
	if v == nil {
		return 0
	}

	return v.i
}

// FloatValue returns the float payload.
func (v *Value) FloatValue() float64 {
	if v == nil {
		return 0
	}

	return v.f
}

// StringValue returns the string payload.
func (v *Value) StringValue() string {
	if v == nil {
		return ""
	}

	return v.s
}

// Text renders a scalar the way it would appear in YAML.
// Sequences and mappings render as their compact form.
func (v *Value) Text() string {
	switch v.Kind() {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	default:
		return v.String()
	}
}

// Len returns the number of sequence items or mapping entries.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindSequence:
		return len(v.items)
	case KindMapping:
		return len(v.keys)
	default:
		return 0
	}
}

// Items returns a copy of the sequence elements.
func (v *Value) Items() []*Value {
	if v.Kind() != KindSequence {
		return nil
	}

	return append([]*Value(nil), v.items...)
}

// Keys returns the mapping keys in insertion order.
func (v *Value) Keys() []string {
	if v.Kind() != KindMapping {
		return nil
	}

	return append([]string(nil), v.keys...)
}

// Get returns the mapping entry stored under key.
func (v *Value) Get(key string) (*Value, bool) {
	if v.Kind() != KindMapping {
		return nil, false
	}

	field, ok := v.fields[key]

	return field, ok
}

// Set stores field under key, keeping the original position of an existing key.
// Set reports whether an earlier entry was replaced. It panics on non-mappings.
func (v *Value) Set(key string, field *Value) bool {
	if v.Kind() != KindMapping {
		panic("config: Set called on " + v.Kind().String())
	}

	if field == nil {
		field = Null()
	}

	_, replaced := v.fields[key]
	if !replaced {
		v.keys = append(v.keys, key)
	}

	v.fields[key] = field

	return replaced
}

// Append adds items to a sequence. It panics on non-sequences.
func (v *Value) Append(items ...*Value) {
	if v.Kind() != KindSequence {
		panic("config: Append called on " + v.Kind().String())
	}

	v.items = append(v.items, items...)
}

// Clone returns a deep copy of v. Cloning nil yields a null value.
func (v *Value) Clone() *Value {
	if v == nil {
		return Null()
	}

	switch v.kind {
	case KindSequence:
		items := make([]*Value, 0, len(v.items))
		for _, item := range v.items {
			items = append(items, item.Clone())
		}

		return &Value{kind: KindSequence, items: items}
	case KindMapping:
		cloned := &Value{
			kind:   KindMapping,
			keys:   append(make([]string, 0, len(v.keys)), v.keys...),
			fields: make(map[string]*Value, len(v.fields)),
		}

		for _, key := range v.keys {
			cloned.fields[key] = v.fields[key].Clone()
		}

		return cloned
	default:
		scalar := *v

		return &scalar
	}
}

// Equal reports deep equality. Mapping key order is not significant.
func (v *Value) Equal(other *Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}

	switch v.Kind() {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindSequence:
		if len(v.items) != len(other.items) {
			return false
		}

		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}

		return true
	case KindMapping:
		if len(v.fields) != len(other.fields) {
			return false
		}

		for key, field := range v.fields {
			otherField, ok := other.fields[key]
			if !ok || !field.Equal(otherField) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// String renders v in a compact flow style, e.g. {a: [1, 2]}.
func (v *Value) String() string {
	var sb strings.Builder

	v.writeFlow(&sb)

	return sb.String()
}

func (v *Value) writeFlow(sb *strings.Builder) {
	switch v.Kind() {
	case KindSequence:
		sb.WriteByte('[')

		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}

			item.writeFlow(sb)
		}

		sb.WriteByte(']')
	case KindMapping:
		sb.WriteByte('{')

		for i, key := range v.keys {
			if i > 0 {
				sb.WriteString(", ")
			}

			sb.WriteString(key)
			sb.WriteString(": ")
			v.fields[key].writeFlow(sb)
		}

		sb.WriteByte('}')
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	default:
		sb.WriteString(v.Text())
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
