package structured

import "strconv"

// Pair is one leaf of a flattened tree.
type Pair struct {
	Path  string
	Value Value
}

// Flatten walks v depth-first and returns every leaf with its dotted path.
// List elements are addressed as name[i]. Empty maps and lists produce a single
// leaf so they remain visible.
func Flatten(v Value) []Pair {
	var out []Pair
	flatten("", v, &out)
	return out
}

func flatten(prefix string, v Value, out *[]Pair) {
	switch v.kind {
	case KindMap:
		if v.m.Len() == 0 {
			*out = append(*out, Pair{Path: prefix, Value: v})
			return
		}
		v.m.Each(func(key string, child Value) {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			flatten(path, child, out)
		})
	case KindList:
		if len(v.l) == 0 {
			*out = append(*out, Pair{Path: prefix, Value: v})
			return
		}
		for i, child := range v.l {
			flatten(prefix+"["+strconv.Itoa(i)+"]", child, out)
		}
	default:
		*out = append(*out, Pair{Path: prefix, Value: v})
	}
}

// Bit names one flag of a bitmask.
type Bit struct {
	Pos  uint
	Name string
}

// BitSet renders a bitmask as its raw value followed by one boolean per named
// bit, in the order given.
func BitSet(raw uint64, bits []Bit) Value {
	m := NewMap().Set("raw", Uint(raw))
	for _, b := range bits {
		m.Set(b.Name, Bool(raw&(1<<b.Pos) != 0))
	}
	return Object(m)
}
