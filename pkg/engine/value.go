package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindNull is the null variant.
	KindNull Kind = iota

	// KindBool is the boolean variant.
	KindBool

	// KindNumber is the numeric variant, stored as float64.
	KindNumber

	// KindString is the text variant.
	KindString

	// KindArray is the ordered sequence variant.
	KindArray

	// KindObject is the string-keyed mapping variant.
	KindObject
)

// String returns the variant name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the structured-data model used for module output and path
// lookup. A Value is immutable once constructed; callers that need an
// independent copy use Clone.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null returns the null Value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number returns a numeric Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String returns a text Value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Array returns an ordered sequence Value holding the given elements.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, arr: elems}
}

// Object returns a mapping Value holding the given entries.
func Object(entries map[string]Value) Value {
	return Value{kind: KindObject, obj: entries}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsScalar reports whether v is null, bool, number, or string.
func (v Value) IsScalar() bool {
	switch v.kind {
	case KindNull, KindBool, KindNumber, KindString:
		return true
	default:
		return false
	}
}

// AsBool returns the boolean payload. Valid only when Kind is KindBool.
func (v Value) AsBool() bool {
	return v.b
}

// AsNumber returns the numeric payload. Valid only when Kind is KindNumber.
func (v Value) AsNumber() float64 {
	return v.n
}

// AsString returns the text payload. Valid only when Kind is KindString.
func (v Value) AsString() string {
	return v.s
}

// Len returns the element count for arrays, the entry count for objects,
// and zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Index returns the array element at i and whether it exists.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Field returns the object entry under key and whether it exists.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	val, ok := v.obj[key]
	return val, ok
}

// Clone returns a deep copy of v. Scalars share no mutable storage, so the
// copy is only material for arrays and objects.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		elems := make([]Value, len(v.arr))
		for i, e := range v.arr {
			elems[i] = e.Clone()
		}
		return Value{kind: KindArray, arr: elems}
	case KindObject:
		entries := make(map[string]Value, len(v.obj))
		for k, e := range v.obj {
			entries[k] = e.Clone()
		}
		return Value{kind: KindObject, obj: entries}
	default:
		return v
	}
}

// Equal reports whether two Values hold the same variant and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, e := range v.obj {
			o, ok := other.obj[k]
			if !ok || !e.Equal(o) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromAny converts an arbitrary Go value into a Value following JSON
// conversion rules. Maps must be string-keyed; unsupported types fall back
// to a JSON round trip.
func FromAny(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case float32:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []interface{}:
		elems := make([]Value, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Value{kind: KindArray, arr: elems}, nil
	case map[string]interface{}:
		entries := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			entries[k] = v
		}
		return Value{kind: KindObject, obj: entries}, nil
	case map[string]string:
		entries := make(map[string]Value, len(t))
		for k, e := range t {
			entries[k] = String(e)
		}
		return Value{kind: KindObject, obj: entries}, nil
	case Value:
		return t, nil
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return Value{}, fmt.Errorf("unsupported output type %T: %w", x, err)
		}
		return FromJSON(raw)
	}
}

// FromJSON decodes a JSON document into a Value.
func FromJSON(data []byte) (Value, error) {
	var x interface{}
	if err := json.Unmarshal(data, &x); err != nil {
		return Value{}, err
	}
	return FromAny(x)
}

// ToInterface converts v back into plain Go values suitable for JSON
// encoding: nil, bool, float64, string, []interface{}, and
// map[string]interface{}.
func (v Value) ToInterface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.ToInterface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.ToInterface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToInterface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String renders v as compact JSON for logs and diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.n == math.Trunc(v.n) && math.Abs(v.n) < 1e15 {
			return strconv.FormatInt(int64(v.n), 10)
		}
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		raw, err := json.Marshal(v.ToInterface())
		if err != nil {
			return fmt.Sprintf("<invalid %s>", v.kind)
		}
		return string(raw)
	}
}

// Keys returns the sorted keys of an object Value, or nil for other kinds.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
