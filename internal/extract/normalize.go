/*
Package extract turns a decoded BOAMP award notice into a flat list of
winning-company records.

BOAMP serves notice data as JSON converted from XML, in one of two
incompatible shapes: the structured European eForms schema and the older
FNSimple format, whose award section is a semi-structured text block. The
conversion leaves two recurring artifacts this package has to absorb: a
child element appears as a single object when the XML had one occurrence
and as a list when it had several, and a leaf value appears either as a
plain scalar or as an object wrapping the scalar under "#text".
*/
package extract

// Normalize coerces a node into a uniform ordered slice of objects: a list
// is returned in order, a single object becomes a one-element slice, and
// anything else (absent key, scalar, null) yields an empty slice. This is
// the single place the one-vs-many conversion artifact is handled.
func Normalize(node any) []map[string]any {
	switch v := node.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{v}
	default:
		return nil
	}
}

// textValue resolves a leaf that may be a plain string or an object with a
// "#text" payload. Any other shape resolves to "" so downstream string
// handling stays total.
func textValue(node any) string {
	switch v := node.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["#text"].(string); ok {
			return s
		}
	}
	return ""
}

// childMap returns the object under key, or nil when the key is absent or
// holds a different shape. Lookups on the nil result are safe.
func childMap(node map[string]any, key string) map[string]any {
	m, _ := node[key].(map[string]any)
	return m
}
