package types

import "github.com/valyala/fastjson"

// ValueOf converts a parsed fastjson value into plain Go values
// (map[string]any, []any, string, float64, bool, nil). Strings are copied,
// so the result stays valid after the parser is reused.
func ValueOf(v *fastjson.Value) any {
	if v == nil {
		return nil
	}
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		out := make(map[string]any, o.Len())
		o.Visit(func(key []byte, item *fastjson.Value) {
			out[string(key)] = ValueOf(item)
		})
		return out
	case fastjson.TypeArray:
		items, _ := v.Array()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, ValueOf(item))
		}
		return out
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeNumber:
		f, _ := v.Float64()
		return f
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
