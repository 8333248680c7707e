package structured

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Map is an insertion-ordered string-keyed map of Values.
type Map struct {
	om *orderedmap.OrderedMap[string, Value]
}

func NewMap() *Map {
	return &Map{om: orderedmap.New[string, Value]()}
}

// Set stores v under key and returns m so calls can be chained. Setting an
// existing key keeps its original position.
func (m *Map) Set(key string, v Value) *Map {
	m.om.Set(key, v)
	return m
}

// SetIf stores v only when cond holds.
func (m *Map) SetIf(cond bool, key string, v Value) *Map {
	if cond {
		m.om.Set(key, v)
	}
	return m
}

func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Null(), false
	}
	return m.om.Get(key)
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.om.Len()
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, m.om.Len())
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each calls fn for every entry in insertion order.
func (m *Map) Each(fn func(key string, v Value)) {
	if m == nil {
		return
	}
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	a, b := m.om.Oldest(), o.om.Oldest()
	for a != nil && b != nil {
		if a.Key != b.Key || !a.Value.Equal(b.Value) {
			return false
		}
		a, b = a.Next(), b.Next()
	}
	return a == nil && b == nil
}

// MarshalJSON encodes m as a JSON object, keeping key order.
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return m.om.MarshalJSON()
}
