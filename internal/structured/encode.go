package structured

import (
	"encoding/json"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MarshalJSON implements json.Marshaler. Non-finite floats have no JSON
// spelling and are written as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(v.n.String()), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindText:
		return json.Marshal(v.s)
	case KindMap:
		return v.m.MarshalJSON()
	case KindList:
		if v.l == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.l)
	default:
		return []byte("null"), nil
	}
}

// MarshalYAML implements yaml.Marshaler by building the node tree directly so
// map order survives.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.yamlNode(), nil
}

func (v Value) yamlNode() *yaml.Node {
	switch v.kind {
	case KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v.n.String()}
	case KindFloat:
		switch {
		case math.IsNaN(v.f):
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: ".nan"}
		case math.IsInf(v.f, 1):
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: ".inf"}
		case math.IsInf(v.f, -1):
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: "-.inf"}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(v.f, 'g', -1, 64)}
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindText:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.s}
	case KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		v.m.Each(func(key string, child Value) {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				child.yamlNode())
		})
		return n
	case KindList:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, child := range v.l {
			n.Content = append(n.Content, child.yamlNode())
		}
		return n
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

// Interface converts v into plain Go values: nil, *big.Int, float64, bool,
// string, []any, and map[string]any. Map order is lost.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.BigInt()
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindText:
		return v.s
	case KindMap:
		out := make(map[string]any, v.m.Len())
		v.m.Each(func(key string, child Value) {
			out[key] = child.Interface()
		})
		return out
	case KindList:
		out := make([]any, len(v.l))
		for i, child := range v.l {
			out[i] = child.Interface()
		}
		return out
	default:
		return nil
	}
}
