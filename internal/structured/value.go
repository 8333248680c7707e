// Package structured provides a machine-independent, ordered tree of primitive
// values. Decoded entities expose themselves through it so that any of them can
// be exported (JSON, YAML, tables) without per-entity serialization code.
package structured

import (
	"math/big"
	"strconv"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindText
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is one node of a structured tree. Leaves are integers (arbitrary
// width, so 128-bit device counters stay exact), floats, booleans, text or
// null. Inner nodes are ordered maps and lists.
//
// The zero Value is null.
type Value struct {
	kind Kind
	n    *big.Int
	f    float64
	b    bool
	s    string
	m    *Map
	l    []Value
}

// Marshaler is implemented by every decoded entity and enum.
type Marshaler interface {
	Structured() Value
}

// Of returns m's structured form, or null when m is nil.
func Of(m Marshaler) Value {
	if m == nil {
		return Null()
	}
	return m.Structured()
}

func Null() Value { return Value{} }

func Int(i int64) Value { return Value{kind: KindInt, n: big.NewInt(i)} }

func Uint(u uint64) Value { return Value{kind: KindInt, n: new(big.Int).SetUint64(u)} }

// BigInt copies i. A nil i yields null.
func BigInt(i *big.Int) Value {
	if i == nil {
		return Null()
	}
	return Value{kind: KindInt, n: new(big.Int).Set(i)}
}

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Text(s string) Value { return Value{kind: KindText, s: s} }

// Object wraps m. A nil m is treated as an empty map.
func Object(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

func List(items ...Value) Value {
	l := make([]Value, len(items))
	copy(l, items)
	return Value{kind: KindList, l: l}
}

// Tagged builds the explicit form used for enum variants that carry a raw
// code instead of a symbolic name, e.g. {kind: "other", code: 255}.
func Tagged(kind string, code uint64) Value {
	return Object(NewMap().
		Set("kind", Text(kind)).
		Set("code", Uint(code)))
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 reports the integer value if v is an integer that fits in an int64.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindInt || !v.n.IsInt64() {
		return 0, false
	}
	return v.n.Int64(), true
}

// Uint64 reports the integer value if v is an integer that fits in a uint64.
func (v Value) Uint64() (uint64, bool) {
	if v.kind != KindInt || !v.n.IsUint64() {
		return 0, false
	}
	return v.n.Uint64(), true
}

// BigInt returns a copy of the integer value, or nil if v is not an integer.
func (v Value) BigInt() *big.Int {
	if v.kind != KindInt {
		return nil
	}
	return new(big.Int).Set(v.n)
}

func (v Value) Float64() (float64, bool) {
	return v.f, v.kind == KindFloat
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Text() (string, bool) {
	return v.s, v.kind == KindText
}

func (v Value) Map() (*Map, bool) {
	return v.m, v.kind == KindMap
}

func (v Value) List() ([]Value, bool) {
	return v.l, v.kind == KindList
}

// Field looks up key in a map value. It returns null if v is not a map or the
// key is missing.
func (v Value) Field(key string) Value {
	if v.kind != KindMap {
		return Null()
	}
	f, _ := v.m.Get(key)
	return f
}

// String renders scalars the way they appear in table output. Maps and lists
// render as their JSON encoding.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return v.n.String()
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindText:
		return v.s
	default:
		data, err := v.MarshalJSON()
		if err != nil {
			return "<" + v.kind.String() + ">"
		}
		return string(data)
	}
}

// Equal reports whether v and o are the same tree. Map key order is significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.n.Cmp(o.n) == 0
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindText:
		return v.s == o.s
	case KindMap:
		return v.m.Equal(o.m)
	case KindList:
		if len(v.l) != len(o.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(o.l[i]) {
				return false
			}
		}
		return true
	}
	return false
}
